package types

// Beat is a single detected beat in an audio file.
type Beat struct {
	Time       float64 `json:"time"`       // seconds from start
	Confidence float64 `json:"confidence"` // 0.0-1.0
}

// Completion is the terminal event for a task. Exactly one is emitted per
// task invocation, after all progress updates.
type Completion struct {
	Success    bool   `json:"success"`
	Canceled   bool   `json:"canceled,omitempty"`
	Message    string `json:"message"`
	OutputPath string `json:"output_path,omitempty"`
}
