// Package query compiles filter strings on behalf of the HTTP API: it picks
// the output targets, caches results and records an audit event per call.
package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vantutran2k1/rsql/pkg/clause"
	"github.com/vantutran2k1/rsql/pkg/coerce"
	"github.com/vantutran2k1/rsql/pkg/convert"
	"github.com/vantutran2k1/rsql/pkg/metrics"
	"github.com/vantutran2k1/rsql/pkg/operator"
	"github.com/vantutran2k1/rsql/pkg/queryparser"
	"github.com/vantutran2k1/rsql/pkg/sqlcheck"
)

var (
	ErrUnknownTarget  = errors.New("unknown target")
	ErrInvalidRequest = errors.New("invalid request")
)

type Target string

const (
	TargetSQL       Target = "sql"
	TargetPredicate Target = "predicate"
	TargetDocument  Target = "document"
	TargetAll       Target = "all"
)

// ParseTarget defaults to sql.
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TargetSQL, nil
	case TargetSQL, TargetPredicate, TargetDocument, TargetAll:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}

func (t Target) wants(other Target) bool {
	return t == other || t == TargetAll
}

// Config is the "compiler" section of config.yaml.
type Config struct {
	FieldMap    map[string]string `mapstructure:"field_map"`
	Schema      map[string]string `mapstructure:"schema"`
	MaxDepth    int               `mapstructure:"max_depth"`
	ValidateSQL bool              `mapstructure:"validate_sql"`
	Limits      clause.Limits     `mapstructure:"limits"`
}

// Request describes one compile call. Table, Order, Limit and Offset only
// matter for the sql target, where they produce a full SELECT statement.
type Request struct {
	Filter string
	Target Target
	Table  string
	Order  []string
	Limit  *int
	Offset *int
}

// Key identifies requests that compile to the same Result.
func (r Request) Key() string {
	var sb strings.Builder
	sb.WriteString(string(r.Target))
	sb.WriteString("|")
	sb.WriteString(r.Table)
	sb.WriteString("|")
	sb.WriteString(strings.Join(r.Order, ","))
	sb.WriteString("|")
	if r.Limit != nil {
		sb.WriteString(strconv.Itoa(*r.Limit))
	}
	sb.WriteString("|")
	if r.Offset != nil {
		sb.WriteString(strconv.Itoa(*r.Offset))
	}
	sb.WriteString("|")
	sb.WriteString(r.Filter)
	return sb.String()
}

// Result holds plain JSON values only (string, float64, bool, nil, []any and
// map[string]any) so it survives the cache codec unchanged.
type Result struct {
	Filter    string         `json:"filter" msgpack:"filter"`
	Target    Target         `json:"target" msgpack:"target"`
	SQL       string         `json:"sql,omitempty" msgpack:"sql,omitempty"`
	Statement string         `json:"statement,omitempty" msgpack:"statement,omitempty"`
	Predicate map[string]any `json:"predicate,omitempty" msgpack:"predicate,omitempty"`
	Document  map[string]any `json:"document,omitempty" msgpack:"document,omitempty"`
}

type Compiler struct {
	fingerprint string
	parser      *queryparser.Parser
	columns     map[string]string
	limits      clause.Limits
	validate    bool
	tracer      trace.Tracer
}

func NewCompiler(cfg Config) (*Compiler, error) {
	schema, err := operator.ParseSchema(cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("invalid compiler schema: %w", err)
	}

	return &Compiler{
		fingerprint: fingerprint(cfg),
		parser: queryparser.New(
			queryparser.WithFieldMap(cfg.FieldMap),
			queryparser.WithSchema(schema),
			queryparser.WithMaxDepth(cfg.MaxDepth),
		),
		columns:  cfg.FieldMap,
		limits:   cfg.Limits,
		validate: cfg.ValidateSQL,
		tracer:   otel.Tracer("github.com/vantutran2k1/rsql/internal/query"),
	}, nil
}

// Fingerprint identifies the configuration the compiler was built from.
// Compilers with different field maps, schemas or limits never share one.
func (c *Compiler) Fingerprint() string {
	return c.fingerprint
}

func fingerprint(cfg Config) string {
	// Config holds only maps, ints and bools; encoding/json sorts map keys.
	data, _ := json.Marshal(cfg)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func (c *Compiler) Compile(ctx context.Context, req Request) (*Result, error) {
	_, span := c.tracer.Start(ctx, "rsql.compile", trace.WithAttributes(
		attribute.String("rsql.target", string(req.Target)),
		attribute.Int("rsql.filter_length", len(req.Filter)),
	))
	defer span.End()

	start := time.Now()
	res, err := c.compile(req)
	metrics.CompileDuration.WithLabelValues(string(req.Target)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CompileTotal.WithLabelValues(string(req.Target), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.CompileTotal.WithLabelValues(string(req.Target), "ok").Inc()
	return res, nil
}

func (c *Compiler) compile(req Request) (*Result, error) {
	if req.Target == "" {
		req.Target = TargetSQL
	}
	res := &Result{Filter: req.Filter, Target: req.Target}

	if req.Target.wants(TargetSQL) {
		if err := c.compileSQL(req, res); err != nil {
			return nil, err
		}
	}

	if req.Target.wants(TargetPredicate) || req.Target.wants(TargetDocument) {
		fields, err := c.parser.ParseParams(queryparser.ParseFlat(req.Filter))
		if err != nil {
			return nil, err
		}
		conv := convert.NewConverter(fields...)

		if req.Target.wants(TargetPredicate) {
			p, err := conv.Predicate()
			if err != nil {
				return nil, err
			}
			if res.Predicate, err = plain(p); err != nil {
				return nil, err
			}
		}
		if req.Target.wants(TargetDocument) {
			d, err := conv.Document()
			if err != nil {
				return nil, err
			}
			if res.Document, err = plain(d); err != nil {
				return nil, err
			}
		}
	}

	return res, nil
}

// plain rewrites m into the values its JSON encoding decodes to: uuids and
// times become strings and numbers become float64.
func plain[M ~map[string]any](m M) (map[string]any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return out, nil
}

func (c *Compiler) compileSQL(req Request, res *Result) error {
	where, err := c.parser.Parse(req.Filter)
	if err != nil {
		return err
	}
	if where != nil {
		if res.SQL, err = where.Build(); err != nil {
			return err
		}
	}
	if c.validate {
		if err := sqlcheck.Where(res.SQL); err != nil {
			return err
		}
	}

	if req.Table == "" {
		return nil
	}
	if !clause.ValidIdentifier(req.Table) {
		return fmt.Errorf("%w: table %q", ErrInvalidRequest, req.Table)
	}

	b := clause.NewBuilder("SELECT * FROM "+req.Table, clause.WithLimits(c.limits), clause.WithColumns(c.columns))
	if where != nil {
		if err := b.WhereClause(where); err != nil {
			return err
		}
	}
	for _, o := range req.Order {
		field, dir, _ := strings.Cut(o, ":")
		d, err := clause.ParseDirection(dir)
		if err != nil {
			return err
		}
		if err := b.AddOrder(d, field); err != nil {
			return err
		}
	}
	if req.Limit != nil {
		if err := b.AddLimit(*req.Limit); err != nil {
			return err
		}
	}
	if req.Offset != nil {
		if err := b.AddOffset(*req.Offset); err != nil {
			return err
		}
	}

	res.Statement = b.Build()
	if c.validate {
		return sqlcheck.Select(res.Statement)
	}
	return nil
}

var invalidInput = []error{
	ErrUnknownTarget,
	ErrInvalidRequest,
	queryparser.ErrInvalidCondition,
	queryparser.ErrMaxDepth,
	clause.ErrInjectionDetected,
	clause.ErrNumericRange,
	clause.ErrFieldRequired,
	clause.ErrInvalidField,
	clause.ErrUnsupportedValue,
	clause.ErrLimitExceeded,
	clause.ErrInvalidLimit,
	clause.ErrInvalidDirection,
	operator.ErrMixedTypes,
	operator.ErrEmptyList,
	operator.ErrOperatorNotAllowed,
	coerce.ErrInvalidNumber,
	coerce.ErrInvalidDate,
	coerce.ErrInvalidBool,
	coerce.ErrInvalidUUID,
	coerce.ErrInvalidSerial,
	coerce.ErrEmptyString,
	sqlcheck.ErrSyntax,
	sqlcheck.ErrNotSelect,
	sqlcheck.ErrMultipleStmt,
}

// IsInvalidInput reports whether err was caused by the caller's filter or
// request rather than by the service.
func IsInvalidInput(err error) bool {
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
