// Package history persists the append-only audit trail of dividend reads,
// trade attempts and sentiment runs.
package history

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aristath/tao-sentinel/internal/domain"
)

// placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type placeholder func(n int) string

func sqlitePlaceholder(int) string { return "?" }

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// buildWhere renders the WHERE clause and args for a history filter.
// withKind is set for tables that carry a trade kind column.
func buildWhere(f domain.HistoryFilter, ph placeholder, withKind bool) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.TopicID != nil {
		args = append(args, *f.TopicID)
		conds = append(conds, "topic_id = "+ph(len(args)))
	}
	if f.AccountKey != "" {
		args = append(args, f.AccountKey)
		conds = append(conds, "account_key = "+ph(len(args)))
	}
	if withKind && f.Kind != "" {
		args = append(args, string(f.Kind))
		conds = append(conds, "kind = "+ph(len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// pageClause appends LIMIT/OFFSET binds to args.
func pageClause(f domain.HistoryFilter, ph placeholder, args []interface{}) (string, []interface{}) {
	args = append(args, f.Limit)
	limit := ph(len(args))
	args = append(args, f.Offset)
	offset := ph(len(args))
	return " LIMIT " + limit + " OFFSET " + offset, args
}

// FilterFromQuery reads netuid, hotkey, kind, limit and offset query parameters.
func FilterFromQuery(q url.Values) (domain.HistoryFilter, error) {
	var f domain.HistoryFilter

	if v := q.Get("netuid"); v != "" {
		topic, err := strconv.Atoi(v)
		if err != nil || topic < 0 {
			return f, fmt.Errorf("invalid netuid %q", v)
		}
		f.TopicID = &topic
	}
	f.AccountKey = q.Get("hotkey")

	switch kind := domain.TradeKind(q.Get("kind")); kind {
	case "", domain.TradeKindStake, domain.TradeKindUnstake:
		f.Kind = kind
	default:
		return f, fmt.Errorf("invalid kind %q", kind)
	}

	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid %s %q", name, v)
		}
		*dst = n
	}

	return f.Normalize(), nil
}
