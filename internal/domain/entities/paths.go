package entities

// PathKind describes what a filesystem path points to
type PathKind string

// Path kinds
const (
	KindFile    PathKind = "file"
	KindDir     PathKind = "dir"
	KindSymlink PathKind = "symlink"
)

// SensitivePath is one entry of the user's paths file
type SensitivePath struct {
	Raw  string // As written, may contain $HOME, ${VAR} or a leading ~
	Path string // Expanded, absolute and cleaned
	Line int    // 1-based line number in the paths file, 0 if not from a file
}
