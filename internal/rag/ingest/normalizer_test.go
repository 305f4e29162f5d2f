package ingest

import (
	"errors"
	"testing"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/internal/domain/commonModels"
	"github.com/akolanti/JournalRAG/internal/domain/ragErrors"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func rawChunk(id, doc, text string, idx int) commonModels.RawChunk {
	return commonModels.RawChunk{ChunkId: strPtr(id), SourceDocId: strPtr(doc), Text: strPtr(text), ChunkIndex: intPtr(idx)}
}

func TestNormalize_UnsupportedSchemaFailsBatch(t *testing.T) {
	_, err := normalize("2.0", []commonModels.RawChunk{rawChunk("c1", "d1", "text", 0)}, 2030)
	if !errors.Is(err, ragErrors.ErrUnsupportedSchema) {
		t.Fatalf("expected ErrUnsupportedSchema, got %v", err)
	}
}

func TestNormalize_RequiredFields(t *testing.T) {
	missingDoc := rawChunk("c1", "d1", "text", 0)
	missingDoc.SourceDocId = nil
	missingId := rawChunk("", "d1", "text", 0)
	missingText := rawChunk("c3", "d1", "", 0)
	missingText.Text = nil
	missingIndex := rawChunk("c4", "d1", "text", 0)
	missingIndex.ChunkIndex = nil
	blank := rawChunk("c5", "d1", " \n\t\x00 ", 0)
	negative := rawChunk("c6", "d1", "text", -1)
	bracket := rawChunk("fig]1", "d1", "text", 0)

	tests := []struct {
		name  string
		rec   commonModels.RawChunk
		field string
	}{
		{"missing source_doc_id", missingDoc, "source_doc_id"},
		{"missing chunk_id", missingId, "chunk_id"},
		{"missing text", missingText, "text"},
		{"missing chunk_index", missingIndex, "chunk_index"},
		{"whitespace only text", blank, "text"},
		{"negative index", negative, "chunk_index"},
		{"closing bracket in chunk_id", bracket, "chunk_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := normalize(config.SupportedSchemaVersion, []commonModels.RawChunk{tt.rec}, 2030)
			if err != nil {
				t.Fatalf("unexpected batch error: %v", err)
			}
			if len(res.Accepted) != 0 || len(res.Rejected) != 1 {
				t.Fatalf("accepted=%d rejected=%d", len(res.Accepted), len(res.Rejected))
			}
			want := tt.field + ":"
			if got := res.Rejected[0].Reason; len(got) < len(want) || got[:len(want)] != want {
				t.Errorf("reason %q should name field %s", got, tt.field)
			}
		})
	}
}

func TestNormalize_CleansAndDefaults(t *testing.T) {
	rec := rawChunk(" c1 ", "doc_1", "\ufeffDeep   learning\n\nfor\tproteins\x00 ", 3)
	res, err := normalize("", []commonModels.RawChunk{rec}, 2030)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Accepted) != 1 {
		t.Fatalf("expected 1 accepted, got %+v", res)
	}
	c := res.Accepted[0]
	if c.ChunkId != "c1" {
		t.Errorf("chunk id not trimmed: %q", c.ChunkId)
	}
	if c.Text != "Deep learning for proteins" {
		t.Errorf("text = %q", c.Text)
	}
	if c.JournalName != config.UnknownJournal || c.Section != config.UnknownSection {
		t.Errorf("sentinels not applied: %+v", c.ChunkMetadata)
	}
	if c.Year != 0 || c.PageNumber != 0 {
		t.Errorf("optional numbers should default to 0: %+v", c.ChunkMetadata)
	}
	if c.Subsection != "" {
		t.Errorf("subsection should default to empty: %q", c.Subsection)
	}

	rec.Subsection = strPtr("  cohort selection ")
	res, err = normalize("", []commonModels.RawChunk{rec}, 2030)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Accepted[0].Subsection; got != "cohort selection" {
		t.Errorf("subsection = %q", got)
	}
}

func TestNormalize_YearRange(t *testing.T) {
	old := rawChunk("c1", "d", "t", 0)
	old.Year = intPtr(1850)
	future := rawChunk("c2", "d", "t", 1)
	future.Year = intPtr(2031)
	ok := rawChunk("c3", "d", "t", 2)
	ok.Year = intPtr(2030)

	res, err := normalize("1.0", []commonModels.RawChunk{old, future, ok}, 2030)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rejected) != 2 || len(res.Accepted) != 1 {
		t.Fatalf("accepted=%d rejected=%d", len(res.Accepted), len(res.Rejected))
	}
	if res.Accepted[0].Year != 2030 {
		t.Errorf("year = %d", res.Accepted[0].Year)
	}
}

func TestNormalize_PreservesOrder(t *testing.T) {
	bad := rawChunk("b1", "d", "t", 0)
	bad.SourceDocId = nil
	bad2 := rawChunk("b2", "d", "   ", 0)
	records := []commonModels.RawChunk{
		rawChunk("a1", "d", "one", 0),
		bad,
		rawChunk("a2", "d", "two", 1),
		bad2,
		rawChunk("a3", "d", "three", 2),
	}

	res, err := normalize("1.0", records, 2030)
	if err != nil {
		t.Fatal(err)
	}
	gotAccepted := []string{}
	for _, c := range res.Accepted {
		gotAccepted = append(gotAccepted, c.ChunkId)
	}
	if len(gotAccepted) != 3 || gotAccepted[0] != "a1" || gotAccepted[1] != "a2" || gotAccepted[2] != "a3" {
		t.Errorf("accepted order = %v", gotAccepted)
	}
	if res.Rejected[0].Index != 1 || res.Rejected[1].Index != 3 {
		t.Errorf("rejected order = %+v", res.Rejected)
	}
	if res.Rejected[0].ChunkId != "b1" {
		t.Errorf("rejected chunk id = %q", res.Rejected[0].ChunkId)
	}
}
