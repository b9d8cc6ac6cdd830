package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/sidetabs/schema"
)

type contextKey int

const (
	tabKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithTab annotates the logger with the tab id if present.
func WithTab(ctx context.Context, tabID schema.TabID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if tabID != "" {
		if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
			return log
		}
		log = log.With("tab", tabID)
	}
	return log
}

// WithGroup annotates the logger with a group id when set.
func WithGroup(log pslog.Logger, groupID schema.GroupID) pslog.Logger {
	if groupID != 0 {
		log = log.With("group", int(groupID))
	}
	return log
}

// WithNative annotates the logger with the identifying fields of a native tab.
func WithNative(log pslog.Logger, native schema.NativeTab) pslog.Logger {
	log = log.With("label", native.Label, "kind", string(native.Kind()))
	if uri := native.URI(); uri != "" {
		log = log.With("uri", uri)
	}
	return WithGroup(log, native.Group)
}

// WithDocument annotates the logger with a document id when available.
func WithDocument(log pslog.Logger, docID schema.DocumentID) pslog.Logger {
	if docID != "" {
		log = log.With("document", docID)
	}
	return log
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil || tabID == "" {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}
