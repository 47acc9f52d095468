// Package pipeline contains the snapshot loader and step executor that
// drive a document through its configured processing steps.
package pipeline

// DocState is the bag of named fields a job carries between steps: the raw
// and processed text plus request metadata such as the target language.
// Steps read it and produce a new state; an existing state value is never
// mutated in place, so a failed step leaves the job state untouched.
type DocState map[string]string

// Well-known state keys seeded at job start.
const (
	KeyDocumentRef    = "document_ref"
	KeyTargetLanguage = "target_language"
	KeyOCRConfidence  = "ocr_confidence"
)

// NewDocState seeds the initial state for a job.
func NewDocState(documentRef, targetLanguage string) DocState {
	state := DocState{KeyDocumentRef: documentRef}
	if targetLanguage != "" {
		state[KeyTargetLanguage] = targetLanguage
	}
	return state
}

// Clone returns an independent copy of the state.
func (s DocState) Clone() DocState {
	out := make(DocState, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns a copy of the state with key set to value. The receiver is
// left unchanged; the merge is atomic from the caller's point of view.
func (s DocState) Merge(key, value string) DocState {
	out := s.Clone()
	out[key] = value
	return out
}
