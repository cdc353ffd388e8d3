package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrEmptyPrompt      = fmt.Errorf("design prompt is empty")
	ErrNoProvider       = fmt.Errorf("no llm provider configured")
	ErrUnknownModel     = fmt.Errorf("unknown model")
	ErrUnknownVendor    = fmt.Errorf("unknown llm vendor")
	ErrMissingAPIKey    = fmt.Errorf("missing api key")
	ErrAllProviders     = fmt.Errorf("all llm providers failed")
	ErrUnknownTeam      = fmt.Errorf("unknown team")
	ErrUnknownAgent     = fmt.Errorf("unknown agent")
	ErrUnknownTool      = fmt.Errorf("unknown tool")
	ErrNoCandidate      = fmt.Errorf("no speaker candidate")
	ErrHumanExit        = fmt.Errorf("human ended the conversation")
	ErrNoCodeBlock      = fmt.Errorf("no code block found")
	ErrForbiddenCode    = fmt.Errorf("code contains forbidden calls")
	ErrUnsafeFilename   = fmt.Errorf("file name escapes the work directory")
	ErrUnsupportedLang  = fmt.Errorf("unsupported code language")
	ErrNoIntersection   = fmt.Errorf("circles do not intersect")
	ErrUnknownShape     = fmt.Errorf("unknown shape")
	ErrStoreNotBuilt    = fmt.Errorf("documentation store has not been built")
	ErrUnsupportedImage = fmt.Errorf("unsupported image type")
	ErrUnauthorized     = fmt.Errorf("unauthorized")
	ErrInvalidRequest   = fmt.Errorf("invalid request")
	ErrNoTranscripts    = fmt.Errorf("transcript store is not configured")
)
