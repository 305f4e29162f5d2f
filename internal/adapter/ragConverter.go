package adapter

import (
	"github.com/akolanti/JournalRAG/internal/api"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
)

func ToUploadBatch(req api.UploadRequest) commonModels.UploadBatch {
	return commonModels.UploadBatch{
		SchemaVersion: req.SchemaVersion,
		Chunks:        req.Chunks,
	}
}

func ToUploadResponse(res commonModels.UploadResult) api.UploadResponse {
	accepted := res.Accepted
	if accepted == nil {
		accepted = []string{}
	}
	rejected := res.Rejected
	if rejected == nil {
		rejected = []commonModels.RejectedChunk{}
	}
	return api.UploadResponse{
		AcceptedCount:    len(accepted),
		RejectedCount:    len(rejected),
		NotEmbeddedCount: len(res.NotEmbedded),
		Accepted:         accepted,
		Rejected:         rejected,
		NotEmbedded:      res.NotEmbedded,
	}
}

func ToSearchQuery(req api.SearchRequest) commonModels.SearchQuery {
	return commonModels.SearchQuery{
		Query:    req.Query,
		K:        req.K,
		MinScore: req.MinScore,
		Filter: commonModels.SearchFilter{
			Journal:  req.Journal,
			YearFrom: req.YearFrom,
			YearTo:   req.YearTo,
		},
		GenerateAnswer: req.GenerateAnswer,
	}
}

func ToSearchResponse(resp commonModels.SearchResponse) api.SearchResponse {
	results := resp.Results
	if results == nil {
		results = []commonModels.SearchResult{}
	}
	return api.SearchResponse{
		Results:    results,
		Count:      len(results),
		SearchTime: resp.SearchTime.Seconds(),
		Answer:     resp.Answer,
	}
}
