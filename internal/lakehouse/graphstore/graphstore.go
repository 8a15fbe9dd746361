// Package graphstore persists the entity/relationship graph in a
// RedisGraph-compatible labeled property graph. Every node and edge carries
// the owning customer id; upserts are MERGE-based so re-ingestion is
// idempotent. A nil *Store is a valid no-op client for deployments without a
// graph database.
package graphstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/RedisGraph/redisgraph-go"
	"github.com/gomodule/redigo/redis"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/metrics"
)

// Config contains graph connection configuration.
type Config struct {
	Host        string
	Port        int
	GraphName   string
	PasswordEnv string
	MaxRetries  int
	RetryDelay  time.Duration
	MaxHops     int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        6379,
		GraphName:   "lakecore",
		PasswordEnv: "LAKECORE_GRAPH_PASSWORD",
		MaxRetries:  3,
		RetryDelay:  time.Second,
		MaxHops:     3,
	}
}

// Store is the graph client. Writes flow through an async queue with retry;
// reads run synchronously on the shared connection.
type Store struct {
	mu        sync.RWMutex
	config    Config
	logger    *slog.Logger
	conn      redis.Conn
	graph     redisgraph.Graph
	connected bool

	writeQueue chan writeOp
	wg         sync.WaitGroup
	stopChan   chan struct{}
}

type writeOp struct {
	query  string
	result chan error
}

// Option configures the Store.
type Option func(*Store)

// WithConfig sets the configuration.
func WithConfig(cfg Config) Option {
	return func(s *Store) { s.config = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a graph client. Call Start before use.
func New(opts ...Option) *Store {
	s := &Store{
		config:     DefaultConfig(),
		logger:     slog.Default(),
		writeQueue: make(chan writeOp, 1000),
		stopChan:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the component name.
func (s *Store) Name() string {
	return "graphstore"
}

// Start connects and prepares the schema.
func (s *Store) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}

	password := os.Getenv(s.config.PasswordEnv)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var dialOpts []redis.DialOption
	if password != "" {
		dialOpts = append(dialOpts, redis.DialPassword(password))
	}

	conn, err := redis.Dial("tcp", addr, dialOpts...)
	if err != nil {
		return fmt.Errorf("connecting to graph database at %s; %w", addr, err)
	}

	s.conn = conn
	s.graph = redisgraph.GraphNew(s.config.GraphName, conn)
	s.connected = true

	if err := s.createSchema(ctx); err != nil {
		s.logger.Warn("failed to create schema indexes", "error", err)
	}

	s.wg.Add(1)
	go s.processWriteQueue()

	s.logger.Info("connected to graph database",
		"host", s.config.Host,
		"port", s.config.Port,
		"graph", s.config.GraphName)

	return nil
}

// Stop drains pending writes and closes the connection.
func (s *Store) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	close(s.stopChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("write queue drained")
	case <-ctx.Done():
		s.logger.Warn("write queue drain timed out")
	}

	if s.conn != nil {
		s.conn.Close()
	}
	s.connected = false
	s.logger.Info("disconnected from graph database")

	return nil
}

// IsConnected returns true if connected to the database.
func (s *Store) IsConnected() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// createSchema creates indexes for common lookups.
func (s *Store) createSchema(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX FOR (d:Document) ON (d.id)",
		"CREATE INDEX FOR (d:Document) ON (d.customer_id)",
		"CREATE INDEX FOR (e:Entity) ON (e.id)",
		"CREATE INDEX FOR (e:Entity) ON (e.customer_id)",
		"CREATE INDEX FOR (e:Entity) ON (e.type)",
	}

	for _, q := range queries {
		if _, err := s.graph.Query(q); err != nil {
			// Existing indexes report an error; not a failure.
			s.logger.Debug("schema query", "query", q, "error", err)
		}
	}
	return nil
}

func (s *Store) processWriteQueue() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			for {
				select {
				case op := <-s.writeQueue:
					s.executeWrite(op)
				default:
					return
				}
			}
		case op := <-s.writeQueue:
			s.executeWrite(op)
		}
	}
}

// executeWrite executes a write operation with exponential backoff retry.
func (s *Store) executeWrite(op writeOp) {
	var err error
	for i := 0; i <= s.config.MaxRetries; i++ {
		_, err = s.graph.Query(op.query)
		if err == nil {
			if op.result != nil {
				op.result <- nil
			}
			return
		}
		if i < s.config.MaxRetries {
			time.Sleep(s.config.RetryDelay * time.Duration(1<<i))
		}
	}

	if op.result != nil {
		op.result <- err
	}
	s.logger.Error("graph write failed after retries", "error", err)
}

func (s *Store) queueWrite(query string) error {
	select {
	case s.writeQueue <- writeOp{query: query}:
		return nil
	default:
		return fmt.Errorf("graph write queue full")
	}
}

func (s *Store) queueWriteSync(query string) error {
	result := make(chan error, 1)
	select {
	case s.writeQueue <- writeOp{query: query, result: result}:
		return <-result
	default:
		return fmt.Errorf("graph write queue full")
	}
}

// UpsertDocument merges a Document node on id. The first write sets
// created_at; later writes refresh the mutable properties.
func (s *Store) UpsertDocument(ctx context.Context, customerID, docID, filename string, category document.Category) error {
	if !s.IsConnected() {
		return nil
	}

	query := upsertDocumentQuery(customerID, docID, filename, category, time.Now().Unix())

	metrics.GraphWritesTotal.WithLabelValues("document").Inc()
	return s.queueWrite(query)
}

func upsertDocumentQuery(customerID, docID, filename string, category document.Category, now int64) string {
	return fmt.Sprintf(`
		MERGE (d:Document {id: '%s'})
		ON CREATE SET d.created_at = %d
		SET d.filename = '%s',
			d.category = '%s',
			d.customer_id = '%s',
			d.updated_at = %d
	`, escapeString(docID), now,
		escapeString(filename),
		escapeString(string(category)),
		escapeString(customerID),
		now)
}

// UpsertEntity merges an Entity node on its (text, type) hash id. The first
// write sets first_seen and count = 1; every later write increments count.
func (s *Store) UpsertEntity(ctx context.Context, customerID string, entity document.Entity) error {
	if !s.IsConnected() {
		return nil
	}

	query := upsertEntityQuery(customerID, entity, time.Now().Unix())

	metrics.GraphWritesTotal.WithLabelValues("entity").Inc()
	return s.queueWrite(query)
}

func upsertEntityQuery(customerID string, entity document.Entity, now int64) string {
	return fmt.Sprintf(`
		MERGE (e:Entity {id: '%s'})
		ON CREATE SET e.text = '%s',
			e.type = '%s',
			e.customer_id = '%s',
			e.count = 1,
			e.first_seen = %d,
			e.last_seen = %d
		ON MATCH SET e.count = e.count + 1,
			e.last_seen = %d
	`, escapeString(entity.ID()),
		escapeString(entity.Text),
		escapeString(string(entity.Type)),
		escapeString(customerID),
		now, now, now)
}

// LinkMention merges a MENTIONS edge from a Document to an Entity.
func (s *Store) LinkMention(ctx context.Context, customerID, docID, entityID string) error {
	if !s.IsConnected() {
		return nil
	}

	query := linkMentionQuery(customerID, docID, entityID, time.Now().Unix())

	metrics.GraphWritesTotal.WithLabelValues("relationship").Inc()
	return s.queueWrite(query)
}

func linkMentionQuery(customerID, docID, entityID string, now int64) string {
	return fmt.Sprintf(`
		MATCH (d:Document {id: '%s'}), (e:Entity {id: '%s'})
		MERGE (d)-[r:MENTIONS]->(e)
		ON CREATE SET r.created_at = %d, r.customer_id = '%s'
	`, escapeString(docID), escapeString(entityID),
		now, escapeString(customerID))
}

// UpsertRelationship merges a typed edge between two entities on
// (src, dst, type).
func (s *Store) UpsertRelationship(ctx context.Context, customerID string, rel document.Relationship) error {
	if !s.IsConnected() {
		return nil
	}
	if !validRelationType(rel.Type) {
		return fmt.Errorf("unknown relationship type %q", rel.Type)
	}

	query := upsertRelationshipQuery(customerID, rel, time.Now().Unix())

	metrics.GraphWritesTotal.WithLabelValues("relationship").Inc()
	return s.queueWrite(query)
}

func upsertRelationshipQuery(customerID string, rel document.Relationship, now int64) string {
	return fmt.Sprintf(`
		MATCH (a:Entity {id: '%s'}), (b:Entity {id: '%s'})
		MERGE (a)-[r:%s]->(b)
		ON CREATE SET r.created_at = %d,
			r.customer_id = '%s',
			r.confidence = %f
	`, escapeString(rel.SourceID), escapeString(rel.TargetID),
		rel.Type,
		now,
		escapeString(customerID),
		rel.Confidence)
}

// Flush blocks until every queued write so far has executed.
func (s *Store) Flush(ctx context.Context) error {
	if !s.IsConnected() {
		return nil
	}
	// A synchronous no-op write acts as a queue barrier.
	return s.queueWriteSync("RETURN 1")
}

// EntitySummary is one row of TopEntities.
type EntitySummary struct {
	ID    string
	Text  string
	Type  document.EntityType
	Count int
}

// TopEntities lists the most frequently seen entities for a customer.
func (s *Store) TopEntities(ctx context.Context, customerID string, limit int) ([]EntitySummary, error) {
	if !s.IsConnected() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
		MATCH (e:Entity {customer_id: '%s'})
		RETURN e.id, e.text, e.type, e.count
		ORDER BY e.count DESC
		LIMIT %d
	`, escapeString(customerID), limit)

	result, err := s.graph.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying top entities; %w", err)
	}

	var out []EntitySummary
	for result.Next() {
		record := result.Record()
		out = append(out, EntitySummary{
			ID:    stringAt(record, 0),
			Text:  stringAt(record, 1),
			Type:  document.EntityType(stringAt(record, 2)),
			Count: intAt(record, 3),
		})
	}
	return out, nil
}

// RelatedEntities returns entities within hops of the source entity,
// restricted to the customer.
func (s *Store) RelatedEntities(ctx context.Context, customerID, entityID string, hops int) ([]EntitySummary, error) {
	if !s.IsConnected() {
		return nil, nil
	}
	if hops < 1 {
		hops = 1
	}
	if hops > s.config.MaxHops {
		hops = s.config.MaxHops
	}

	query := fmt.Sprintf(`
		MATCH (src:Entity {id: '%s', customer_id: '%s'})-[*1..%d]-(e:Entity)
		WHERE e.customer_id = '%s' AND e.id <> src.id
		RETURN DISTINCT e.id, e.text, e.type, e.count
	`, escapeString(entityID), escapeString(customerID), hops, escapeString(customerID))

	result, err := s.graph.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying related entities; %w", err)
	}

	var out []EntitySummary
	for result.Next() {
		record := result.Record()
		out = append(out, EntitySummary{
			ID:    stringAt(record, 0),
			Text:  stringAt(record, 1),
			Type:  document.EntityType(stringAt(record, 2)),
			Count: intAt(record, 3),
		})
	}
	return out, nil
}

// Query runs a raw Cypher query as-is.
func (s *Store) Query(ctx context.Context, cypher string) (*redisgraph.QueryResult, error) {
	if !s.IsConnected() {
		return nil, fmt.Errorf("not connected to graph database")
	}
	return s.graph.Query(cypher)
}

var relationTypes = map[document.RelationType]bool{
	document.RelMentions:    true,
	document.RelProduces:    true,
	document.RelProducedBy:  true,
	document.RelWorksAt:     true,
	document.RelEmploys:     true,
	document.RelLocatedIn:   true,
	document.RelHosts:       true,
	document.RelReleasedOn:  true,
	document.RelReleaseDate: true,
}

// validRelationType gates interpolation of the edge label into Cypher.
func validRelationType(t document.RelationType) bool {
	return relationTypes[t]
}

func stringAt(record *redisgraph.Record, idx int) string {
	if v, ok := record.GetByIndex(idx).(string); ok {
		return v
	}
	return ""
}

func intAt(record *redisgraph.Record, idx int) int {
	switch v := record.GetByIndex(idx).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// escapeString escapes single quotes and backslashes for Cypher queries.
func escapeString(s string) string {
	result := ""
	for _, c := range s {
		if c == '\'' {
			result += "\\'"
		} else if c == '\\' {
			result += "\\\\"
		} else {
			result += string(c)
		}
	}
	return result
}
