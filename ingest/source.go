// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/poiesic/websage/core"
)

// ChunkSource is a finite, ordered iterator of chunk records. Chunks arrive
// without embeddings; the pipeline attaches them. A non-nil error ends
// iteration and aborts the run.
type ChunkSource = iter.Seq2[*core.Chunk, error]

// SliceSource adapts an in-memory slice to a ChunkSource.
func SliceSource(chunks []*core.Chunk) ChunkSource {
	return func(yield func(*core.Chunk, error) bool) {
		for _, chunk := range chunks {
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// jsonLink mirrors core.Link on the wire.
type jsonLink struct {
	AnchorText string `json:"anchor_text"`
	Target     string `json:"target"`
}

// jsonChunk is the JSONL record shape emitted by the chunking collaborator.
type jsonChunk struct {
	Id            string     `json:"id"`
	Url           string     `json:"url"`
	Text          string     `json:"text"`
	Hierarchy     []string   `json:"hierarchy"`
	OutgoingLinks []jsonLink `json:"outgoing_links"`
	ParentId      string     `json:"parent_id"`
	ChunkIndex    int        `json:"chunk_index"`
	SegmentIndex  int        `json:"segment_index"`
	IncomingLinks []jsonLink `json:"incoming_links"`
}

func toLinks(links []jsonLink) []core.Link {
	if len(links) == 0 {
		return nil
	}
	out := make([]core.Link, len(links))
	for i, l := range links {
		out[i] = core.Link{AnchorText: l.AnchorText, Target: l.Target}
	}
	return out
}

// JSONLSource reads one chunk record per line. Blank lines are skipped; a
// malformed line yields an error carrying its line number and ends the run.
func JSONLSource(r io.Reader) ChunkSource {
	return func(yield func(*core.Chunk, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			var jc jsonChunk
			if err := json.Unmarshal(raw, &jc); err != nil {
				yield(nil, fmt.Errorf("line %d: %w", line, err))
				return
			}

			chunk := &core.Chunk{
				Id:            jc.Id,
				Url:           jc.Url,
				Text:          jc.Text,
				Hierarchy:     jc.Hierarchy,
				OutgoingLinks: toLinks(jc.OutgoingLinks),
				Metadata: core.ChunkMetadata{
					ParentId:      jc.ParentId,
					ChunkIndex:    jc.ChunkIndex,
					SegmentIndex:  jc.SegmentIndex,
					IncomingLinks: toLinks(jc.IncomingLinks),
				},
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, err)
		}
	}
}
