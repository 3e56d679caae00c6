package ragflow

import (
	"context"
	"net/url"
)

// Dataset is the identifying subset of a RAGFlow dataset record.
type Dataset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Document is the metadata RAGFlow keeps for one document in a dataset.
type Document struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	ChunkCount int    `json:"chunk_count"`
	CreateDate string `json:"create_date"`
	UpdateDate string `json:"update_date"`
	TokenCount int    `json:"token_count"`
	Thumbnail  string `json:"thumbnail"`
}

type request struct {
	ctx    context.Context
	method string
	path   string
	body   any
	query  url.Values
}

func datasetFromMap(m map[string]any) (Dataset, bool) {
	id := StringField(m, "id")
	if id == "" {
		return Dataset{}, false
	}
	return Dataset{
		ID:          id,
		Name:        StringField(m, "name"),
		Description: StringField(m, "description"),
	}, true
}

func documentFromMap(m map[string]any) (Document, bool) {
	id := StringField(m, "id")
	if id == "" {
		return Document{}, false
	}
	size, _ := intValue(m["size"])
	chunks, _ := intValue(m["chunk_count"])
	tokens, _ := intValue(m["token_count"])
	return Document{
		ID:         id,
		Name:       StringField(m, "name"),
		Location:   StringField(m, "location"),
		Type:       StringField(m, "type"),
		Size:       int64(size),
		ChunkCount: chunks,
		CreateDate: StringField(m, "create_date"),
		UpdateDate: StringField(m, "update_date"),
		TokenCount: tokens,
		Thumbnail:  StringField(m, "thumbnail"),
	}, true
}
