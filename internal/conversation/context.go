package conversation

// State reports whether a session has executed a query yet.
type State string

const (
	StateEmpty  State = "empty"
	StateActive State = "active"
)

// ExecutionRecord describes the most recently executed query. Only one record
// is current; each execution replaces it.
type ExecutionRecord struct {
	Query        string `json:"query"`
	RowCount     int    `json:"row_count"`
	FilterClause string `json:"filter_clause,omitempty"`
	// Truncated marks RowCount as a lower bound: the query hit the row limit.
	Truncated bool `json:"truncated,omitempty"`
}

type EntityMention struct {
	Count       int    `json:"count"`
	SourceQuery string `json:"source_query"`
}

// Context is the per-session query state read by BuildContext. It is not
// safe for concurrent use; callers serialize turns per session.
type Context struct {
	last     *ExecutionRecord
	extra    map[string]string
	mentions map[string]EntityMention
	order    []string
}

func NewContext() *Context {
	return &Context{
		extra:    map[string]string{},
		mentions: map[string]EntityMention{},
	}
}

// RecordExecution replaces the current execution record. The filter clause is
// recomputed from query and cleared when query has no WHERE. extra is merged
// into the auxiliary context, overwriting keys it names.
func (c *Context) RecordExecution(query string, rowCount int, extra map[string]string) {
	record := &ExecutionRecord{Query: query, RowCount: rowCount}
	if clause, ok := ExtractFilterClause(query); ok {
		record.FilterClause = clause
	}
	c.last = record
	for key, value := range extra {
		c.extra[key] = value
	}
}

// MarkTruncated flags the current execution record's row count as a lower
// bound. It is a no-op before the first execution.
func (c *Context) MarkTruncated() {
	if c.last != nil {
		c.last.Truncated = true
	}
}

func (c *Context) RecordEntityMention(entityType string, count int, sourceQuery string) {
	if _, ok := c.mentions[entityType]; !ok {
		c.order = append(c.order, entityType)
	}
	c.mentions[entityType] = EntityMention{Count: count, SourceQuery: sourceQuery}
}

// AbsorbAnswer extracts entity mentions from an answer and records each one
// against sourceQuery.
func (c *Context) AbsorbAnswer(answer, sourceQuery string) []Mention {
	mentions := ExtractMentions(answer)
	for _, mention := range mentions {
		c.RecordEntityMention(mention.EntityType, mention.Count, sourceQuery)
	}
	return mentions
}

func (c *Context) State() State {
	if c.last == nil {
		return StateEmpty
	}
	return StateActive
}

func (c *Context) LastQuery() (string, bool) {
	if c.last == nil {
		return "", false
	}
	return c.last.Query, true
}

func (c *Context) LastRowCount() (int, bool) {
	if c.last == nil {
		return 0, false
	}
	return c.last.RowCount, true
}

func (c *Context) FilterClause() (string, bool) {
	if c.last == nil || c.last.FilterClause == "" {
		return "", false
	}
	return c.last.FilterClause, true
}

func (c *Context) LastExecution() (ExecutionRecord, bool) {
	if c.last == nil {
		return ExecutionRecord{}, false
	}
	return *c.last, true
}

func (c *Context) Extra() map[string]string {
	out := make(map[string]string, len(c.extra))
	for key, value := range c.extra {
		out[key] = value
	}
	return out
}

// Mentions returns the registry in first-insertion order.
func (c *Context) Mentions() []RegistryEntry {
	out := make([]RegistryEntry, 0, len(c.order))
	for _, entityType := range c.order {
		mention := c.mentions[entityType]
		out = append(out, RegistryEntry{EntityType: entityType, Count: mention.Count, SourceQuery: mention.SourceQuery})
	}
	return out
}

func (c *Context) Mention(entityType string) (EntityMention, bool) {
	mention, ok := c.mentions[entityType]
	return mention, ok
}

type RegistryEntry struct {
	EntityType  string `json:"entity_type"`
	Count       int    `json:"count"`
	SourceQuery string `json:"source_query"`
}

// Snapshot is the serializable form of a Context.
type Snapshot struct {
	State    State             `json:"state"`
	Last     *ExecutionRecord  `json:"last_execution,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Mentions []RegistryEntry   `json:"entity_mentions,omitempty"`
}

func (c *Context) Snapshot() Snapshot {
	snapshot := Snapshot{
		State:    c.State(),
		Extra:    c.Extra(),
		Mentions: c.Mentions(),
	}
	if record, ok := c.LastExecution(); ok {
		snapshot.Last = &record
	}
	return snapshot
}

func RestoreContext(snapshot Snapshot) *Context {
	c := NewContext()
	if snapshot.Last != nil {
		record := *snapshot.Last
		c.last = &record
	}
	for key, value := range snapshot.Extra {
		c.extra[key] = value
	}
	for _, entry := range snapshot.Mentions {
		c.RecordEntityMention(entry.EntityType, entry.Count, entry.SourceQuery)
	}
	return c
}
