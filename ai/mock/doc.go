// Package mock provides test doubles for the ai interfaces. The embedder
// produces deterministic hash-derived vectors so identical text always maps
// to the same point; the generator replays scripted responses in order.
package mock
