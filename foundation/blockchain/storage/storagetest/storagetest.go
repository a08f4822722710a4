// Package storagetest provides the behavior checks every database.Storage
// implementation must pass.
package storagetest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bitsim/node/foundation/blockchain/database"
)

// Success and failure markers.
const (
	Success = "\u2713"
	Failed  = "\u2717"
)

// Run exercises the storage implementation against the behavior the
// database package relies on.
func Run(t *testing.T, s database.Storage) {
	t.Helper()

	t.Log("Given the need to store documents in collections.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a storage implementation.", testID)
		{
			if _, err := s.Get("blocks", "missing"); !errors.Is(err, database.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrNotFound for a missing document: %v", Failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrNotFound for a missing document.", Success, testID)

			docs, err := s.List("empty")
			if err != nil || len(docs) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould list nothing for an unknown collection: %d %v", Failed, testID, len(docs), err)
			}
			t.Logf("\t%s\tTest %d:\tShould list nothing for an unknown collection.", Success, testID)

			for _, key := range []string{"00000000000000000003", "00000000000000000001", "00000000000000000002"} {
				if err := s.Put("blocks", key, []byte(`{"key":"`+key+`"}`)); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to put document %s: %v", Failed, testID, key, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to put documents.", Success, testID)

			if err := s.Put("mempool", "00000000000000000001", []byte(`{"id":"1"}`)); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to put into a second collection: %v", Failed, testID, err)
			}

			docs, err = s.List("blocks")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to list documents: %v", Failed, testID, err)
			}
			if len(docs) != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould list 3 documents, got %d.", Failed, testID, len(docs))
			}
			for i, exp := range []string{"00000000000000000001", "00000000000000000002", "00000000000000000003"} {
				if docs[i].Key != exp {
					t.Fatalf("\t%s\tTest %d:\tShould list documents in key order, got %s at %d.", Failed, testID, docs[i].Key, i)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould list documents in key order.", Success, testID)

			if err := s.Put("blocks", "00000000000000000002", []byte(`{"key":"replaced"}`)); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to replace a document: %v", Failed, testID, err)
			}
			body, err := s.Get("blocks", "00000000000000000002")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to get a document: %v", Failed, testID, err)
			}
			if !bytes.Contains(body, []byte("replaced")) {
				t.Fatalf("\t%s\tTest %d:\tShould get back the replaced document, got %s.", Failed, testID, body)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the replaced document.", Success, testID)

			if err := s.Delete("blocks", "00000000000000000001", "00000000000000000003", "missing"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to delete documents: %v", Failed, testID, err)
			}
			docs, _ = s.List("blocks")
			if len(docs) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have 1 document left, got %d.", Failed, testID, len(docs))
			}
			t.Logf("\t%s\tTest %d:\tShould be able to delete documents.", Success, testID)

			if err := s.Reset(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reset: %v", Failed, testID, err)
			}
			for _, collection := range []string{"blocks", "mempool"} {
				docs, _ = s.List(collection)
				if len(docs) != 0 {
					t.Fatalf("\t%s\tTest %d:\tShould have nothing in %s after reset, got %d.", Failed, testID, collection, len(docs))
				}
			}
			t.Logf("\t%s\tTest %d:\tShould have nothing left after reset.", Success, testID)
		}
	}
}
