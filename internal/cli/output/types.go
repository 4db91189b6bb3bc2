package output

import "time"

// JSON output shapes, one per command.

// CheckOutput is the JSON form of the check command.
type CheckOutput struct {
	RunID       string             `json:"run_id,omitempty"`
	Aliases     int                `json:"aliases"`
	Circular    int                `json:"circular"`
	Cycles      [][]string         `json:"cycles"`
	Diagnostics []DiagnosticOutput `json:"diagnostics"`
}

// DiagnosticOutput is one circular alias.
type DiagnosticOutput struct {
	Code    string   `json:"code"`
	Alias   string   `json:"alias"`
	Cycle   []string `json:"cycle"`
	File    string   `json:"file,omitempty"`
	Line    int      `json:"line,omitempty"`
	Message string   `json:"message"`
}

// DepsOutput is the JSON form of the deps command.
type DepsOutput struct {
	Alias        string   `json:"alias"`
	Direct       bool     `json:"direct"`
	Circular     bool     `json:"circular"`
	Dependencies []string `json:"dependencies"`
}

// OrderOutput is the JSON form of the order command.
type OrderOutput struct {
	Order []string `json:"order"`
}

// ComponentOutput is one strongly connected component.
type ComponentOutput struct {
	Aliases []string `json:"aliases"`
	Cyclic  bool     `json:"cyclic"`
}

// SCCOutput is the JSON form of the scc command.
type SCCOutput struct {
	Components []ComponentOutput `json:"components"`
	Total      int               `json:"total"`
	Cyclic     int               `json:"cyclic"`
}

// FileNode is one file in the file graph.
type FileNode struct {
	Path      string   `json:"path"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// FileLevel groups files whose dependencies are all in earlier levels.
type FileLevel struct {
	Level int        `json:"level"`
	Files []FileNode `json:"files"`
}

// FilesOutput is the JSON form of the files command.
type FilesOutput struct {
	Levels     []FileLevel `json:"levels"`
	TotalFiles int         `json:"total_files"`
	TotalEdges int         `json:"total_edges"`
	Roots      []string    `json:"roots"`
	Leaves     []string    `json:"leaves"`
	// Order lists files dependencies first; omitted when files form a cycle.
	Order []string `json:"order,omitempty"`
	// Cycles lists groups of files that reference each other.
	Cycles [][]string `json:"cycles,omitempty"`
}

// RunOutput is one recorded run.
type RunOutput struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
	Aliases     int        `json:"aliases"`
	Circular    int        `json:"circular"`
	Error       string     `json:"error,omitempty"`
	Diagnostics []string   `json:"diagnostics,omitempty"`
}

// HistoryOutput is the JSON form of the history command.
type HistoryOutput struct {
	Runs []RunOutput `json:"runs"`
}
