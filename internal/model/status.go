package model

import "time"

// JobStatus is the state of a job in the conversion pipeline.
//
//	queued -> uploading -> processing -> completed
//	                   \             \-> error
//	                    \-> completed | error
//
// skipped is reached only from validation, error goes back to queued only by an explicit retry.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusUploading  JobStatus = "uploading"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
	JobStatusSkipped    JobStatus = "skipped"
)

// Terminal returns true for the states that don't transition automatically.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusError, JobStatusSkipped:
		return true
	}
	return false
}

// Active returns true for the in-flight states.
func (s JobStatus) Active() bool {
	return s == JobStatusUploading || s == JobStatusProcessing
}

var jobStatusEdges = map[JobStatus]map[JobStatus]bool{
	JobStatusQueued:     {JobStatusUploading: true},
	JobStatusUploading:  {JobStatusProcessing: true, JobStatusCompleted: true, JobStatusError: true},
	JobStatusProcessing: {JobStatusCompleted: true, JobStatusError: true},
	JobStatusError:      {JobStatusQueued: true},
}

// CanTransition returns true if from -> to is an edge of the job state machine.
func (s JobStatus) CanTransition(to JobStatus) bool {
	return jobStatusEdges[s][to]
}

// StatusRecord is the observable state of one job.
type StatusRecord struct {
	JobID     string
	Name      string
	Kind      JobKind
	SizeBytes int64
	Status    JobStatus
	Stage     string
	// Progress is a 0-100 percentage.
	Progress    int
	TotalUnits  int
	CurrentUnit int
	Error       string
	Result      *ConversionResult
	// Attempt is the run number, incremented on every retry.
	Attempt   int
	Source    Document
	UpdatedAt time.Time
}

// StatusPatch is a partial update of a status record, nil fields are left untouched.
type StatusPatch struct {
	Stage       *string
	Progress    *int
	TotalUnits  *int
	CurrentUnit *int
	Error       *string
	Result      *ConversionResult
}

func (p StatusPatch) WithStage(stage string) StatusPatch    { p.Stage = &stage; return p }
func (p StatusPatch) WithProgress(progress int) StatusPatch { p.Progress = &progress; return p }
func (p StatusPatch) WithUnits(total, current int) StatusPatch {
	p.TotalUnits, p.CurrentUnit = &total, &current
	return p
}
func (p StatusPatch) WithError(msg string) StatusPatch          { p.Error = &msg; return p }
func (p StatusPatch) WithResult(r ConversionResult) StatusPatch { p.Result = &r; return p }

// CurrentJob is the progress view of the job that is being converted right now.
type CurrentJob struct {
	JobID       string
	Name        string
	Stage       string
	Progress    int
	TotalUnits  int
	CurrentUnit int
}
