package types

// EventType names one worker stage in the pipeline. Naming stages this way
// (rather than hard-coding call sequences) lets the Pipeline Runner and the
// Category Expert share one definition of "what comes next".
type EventType string

const (
	EventRewriteQuery   EventType = "rewrite_query"
	EventHybridSearch   EventType = "hybrid_search"
	EventAugment        EventType = "augment"
	EventRerank         EventType = "rerank"
	EventCompress       EventType = "compress"
	EventAnswer         EventType = "answer"
)

// ExpertStages is the strictly sequential W1→W2→W4 chain run inside a single
// Category Expert (§4.8).
var ExpertStages = []EventType{EventRewriteQuery, EventHybridSearch, EventRerank}

// PostMergeStages is the W3→W5→W6 chain the Leader runs once after merging
// expert results (§4.9 steps 4-5).
var PostMergeStages = []EventType{EventAugment, EventCompress, EventAnswer}

// StageBudgets maps a worker's EventType to its configured wall-clock budget
// in milliseconds (§4.9, §5). Populated from Config.StageBudgetsMS at boot.
type StageBudgets map[EventType]int
