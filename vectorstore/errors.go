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


package vectorstore

import "errors"

var (
	// ErrNotCreated is returned when the store is used before Create.
	// This is a programmer error and is not recovered.
	ErrNotCreated = errors.New("vector store not created; call Create first")

	// ErrInvalidDim is returned when Create is called with a non-positive dimension.
	ErrInvalidDim = errors.New("embedding dimension must be positive")

	// ErrUnsupportedKind is returned when Create is called with an unknown index kind.
	ErrUnsupportedKind = errors.New("unsupported index kind")

	// ErrDimensionMismatch is returned when a query or record embedding does not
	// match the store dimension. This is a caller error and is not recovered.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrKeyNotFound is returned by DeleteByKey for an unknown key.
	ErrKeyNotFound = errors.New("no record found for key")

	// ErrIDNotFound is returned by Update for an unknown id.
	ErrIDNotFound = errors.New("no record found for id")
)
