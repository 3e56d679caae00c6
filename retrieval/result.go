package retrieval

import "github.com/jonwraymond/toolragflow/ragflow"

// Result messages.
const (
	MessageNoDocuments = "No relevant documents found."
	ErrorNoDatasets    = "No datasets available for search."
)

// Result is the structured outcome of a search. Chunks is never nil.
type Result struct {
	Chunks     []map[string]any `json:"chunks"`
	Pagination Pagination       `json:"pagination"`
	QueryInfo  *QueryInfo       `json:"query_info,omitempty"`
	Message    string           `json:"message,omitempty"`
	Error      string           `json:"error,omitempty"`
	APIURL     string           `json:"api_url,omitempty"`
}

// Pagination describes where the returned chunks sit in the full result set.
type Pagination struct {
	Page        int `json:"page"`
	PageSize    int `json:"page_size"`
	TotalChunks int `json:"total_chunks"`
	TotalPages  int `json:"total_pages"`
}

// QueryInfo echoes the parameters a search ran with.
type QueryInfo struct {
	Question            string   `json:"question"`
	DatasetIDs          []string `json:"dataset_ids"`
	DocumentIDs         []string `json:"document_ids,omitempty"`
	SimilarityThreshold float64  `json:"similarity_threshold"`
	VectorWeight        float64  `json:"vector_weight"`
	KeywordSearch       bool     `json:"keyword_search"`
	TopK                int      `json:"top_k"`
	RerankID            string   `json:"rerank_id,omitempty"`
	DatasetCount        int      `json:"dataset_count"`
}

// TotalPages returns ceil(total / pageSize), or 0 when either is not positive.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func newQueryInfo(q Query, datasetIDs []string) *QueryInfo {
	ids := datasetIDs
	if ids == nil {
		ids = []string{}
	}
	return &QueryInfo{
		Question:            q.Question,
		DatasetIDs:          ids,
		DocumentIDs:         q.DocumentIDs,
		SimilarityThreshold: q.SimilarityThreshold,
		VectorWeight:        q.VectorSimilarityWeight,
		KeywordSearch:       q.Keyword,
		TopK:                q.TopK,
		RerankID:            q.RerankID,
		DatasetCount:        len(datasetIDs),
	}
}

// failed builds an error result with pagination zeroed at the requested page.
func failed(q Query, datasetIDs []string, msg string) Result {
	return Result{
		Chunks:     []map[string]any{},
		Pagination: Pagination{Page: q.Page, PageSize: q.PageSize},
		QueryInfo:  newQueryInfo(q, datasetIDs),
		Error:      msg,
	}
}

// DatasetList is the payload of the list_datasets tool.
type DatasetList struct {
	Datasets []ragflow.Dataset `json:"datasets"`
	Total    int               `json:"total"`
}

// Health status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Health is the payload of the health_check tool.
type Health struct {
	Status        string `json:"status"`
	Backend       string `json:"backend"`
	APIURL        string `json:"api_url"`
	Connection    string `json:"connection,omitempty"`
	DatasetsCount *int   `json:"datasets_count,omitempty"`
	Error         string `json:"error,omitempty"`
	Message       string `json:"message"`
}

// Rejected is the result returned for tool arguments that could not be
// parsed into a Query.
func Rejected(err error) Result {
	return failed(NewQuery(""), nil, err.Error())
}

// Failed reports whether the search ended in an error.
func (r Result) Failed() bool { return r.Error != "" }

// Failed reports whether the probe found the backend unhealthy.
func (h Health) Failed() bool { return h.Status != StatusOK }
