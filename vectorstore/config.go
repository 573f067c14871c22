package vectorstore

// IndexKind selects the nearest-neighbor search structure.
type IndexKind string

const (
	// IndexFlat performs exact brute-force inner-product search.
	IndexFlat IndexKind = "flat"
	// IndexHNSW uses a hierarchical navigable small-world graph.
	IndexHNSW IndexKind = "hnsw"
	// IndexIVF uses an inverted-file structure over k-means partitions.
	IndexIVF IndexKind = "ivf_flat"
	// IndexIVFPQ combines the inverted file with product quantization.
	IndexIVFPQ IndexKind = "ivf_pq"
)

// Config holds the index kind and its tuning knobs. Zero values are replaced
// with defaults by normalize. The config is persisted alongside the metadata
// so a loaded store rebuilds with the same parameters.
type Config struct {
	Kind IndexKind

	// IVF knobs
	IVFNlist int // number of coarse partitions
	NProbe   int // partitions scanned per query

	// PQ knobs
	PQM     int // subquantizer count; must divide the dimension
	PQNbits int // bits per subquantizer code

	// HNSW knobs
	HNSWM           int
	HNSWEfSearch    int
	HNSWEfConstruct int
}

func defaultConfig(kind IndexKind) Config {
	return Config{
		Kind:            kind,
		IVFNlist:        1024,
		NProbe:          8,
		PQM:             8,
		PQNbits:         8,
		HNSWM:           32,
		HNSWEfSearch:    64,
		HNSWEfConstruct: 120,
	}
}

func (c *Config) normalize() {
	def := defaultConfig(c.Kind)
	if c.IVFNlist <= 0 {
		c.IVFNlist = def.IVFNlist
	}
	if c.NProbe <= 0 {
		c.NProbe = def.NProbe
	}
	if c.PQM <= 0 {
		c.PQM = def.PQM
	}
	if c.PQNbits <= 0 || c.PQNbits > 8 {
		c.PQNbits = def.PQNbits
	}
	if c.HNSWM <= 0 {
		c.HNSWM = def.HNSWM
	}
	if c.HNSWEfSearch <= 0 {
		c.HNSWEfSearch = def.HNSWEfSearch
	}
	if c.HNSWEfConstruct <= 0 {
		c.HNSWEfConstruct = def.HNSWEfConstruct
	}
}

func (c Config) valid() bool {
	switch c.Kind {
	case IndexFlat, IndexHNSW, IndexIVF, IndexIVFPQ:
		return true
	}
	return false
}
