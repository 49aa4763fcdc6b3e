package entities

// MaxCandidateScore caps the summed score of a candidate
const MaxCandidateScore = 100

// ScanConfig drives the sensitive path scanner
type ScanConfig struct {
	Roots          []string
	MaxDepth       int
	MaxFileSize    int64
	Workers        int
	FollowSymlinks bool
	Exclude        []string
	Locations      []LocationRule
	NameRules      []NameRule
	ContentRules   []ContentRule
}

// LocationRule is a well-known sensitive location relative to a scan root
type LocationRule struct {
	Path   string
	Reason string
	Score  int
}

// NameRule matches file or directory base names with a glob
type NameRule struct {
	Glob   string
	Reason string
	Score  int
}

// ContentRule matches file contents with an RE2 expression
type ContentRule struct {
	Name    string
	Pattern string
	Score   int
}

// Hit is a single rule match for a path
type Hit struct {
	Path   string
	Kind   PathKind
	Reason string
	Score  int
}

// ScanInventory is what the file finder collected from the scan roots
type ScanInventory struct {
	Hits         []Hit    // Location and name rule hits
	Files        []string // Regular files eligible for content search
	DirsVisited  int
	FilesVisited int
}

// Candidate is a path the scanner suggests adding to the paths file
type Candidate struct {
	Path       string   `json:"path" yaml:"path"`
	Kind       PathKind `json:"kind" yaml:"kind"`
	Score      int      `json:"score" yaml:"score"`
	Reasons    []string `json:"reasons" yaml:"reasons"`
	Configured bool     `json:"configured" yaml:"configured"`
}
