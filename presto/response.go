package presto

// queryResponse is one page of the backend's request/poll API.
type queryResponse struct {
	ID               string        `json:"id"`
	InfoURI          string        `json:"infoUri"`
	PartialCancelURI string        `json:"partialCancelUri"`
	NextURI          string        `json:"nextUri"`
	Columns          []queryColumn `json:"columns"`
	Data             []queryData   `json:"data"`
	Stats            stmtStats     `json:"stats"`
	Error            stmtError     `json:"error"`
}

type queryColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type queryData []interface{}

type stmtStats struct {
	State           string `json:"state"`
	Scheduled       bool   `json:"scheduled"`
	Nodes           int    `json:"nodes"`
	TotalSplits     int64  `json:"totalSplits"`
	QueuedSplits    int64  `json:"queuedSplits"`
	RunningSplits   int64  `json:"runningSplits"`
	CompletedSplits int64  `json:"completedSplits"`
}

type stmtError struct {
	Message   string `json:"message"`
	ErrorName string `json:"errorName"`
	ErrorCode int    `json:"errorCode"`
}

// backend lifecycle states
const (
	stateFinished = "FINISHED"
	stateFailed   = "FAILED"
	stateCanceled = "CANCELED"
)

func (s stmtStats) failed() bool {
	return s.State == stateFailed || s.State == stateCanceled
}
