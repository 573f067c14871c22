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


package core

import "fmt"

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Url must not be empty
//
// NOT validated:
//   - Embedding (attached later by the ingest pipeline)
//   - Id (an empty id falls back to url#chunk_<idx> identity)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyText)
	}

	if chunk.Url == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyURL)
	}

	return nil
}

// ValidateEmbedded checks that a chunk carries an embedding of the expected width.
// Called by the vector store on Add; a mismatch is a caller error and is not
// recovered.
func ValidateEmbedded(chunk *Chunk, dim int) error {
	if err := ValidateChunk(chunk); err != nil {
		return err
	}
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrMissingEmbedding)
	}
	if len(chunk.Embedding) != dim {
		return fmt.Errorf("%w: embedding has %d dimensions, store expects %d",
			ErrInvalidChunk, len(chunk.Embedding), dim)
	}
	return nil
}
