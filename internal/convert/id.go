package convert

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"pkt.systems/sidetabs/schema"
)

var (
	now         = time.Now
	diffCounter atomic.Uint64
	syncCounter atomic.Uint64
)

// GenerateID returns the id of a non-diff tab. It is a pure function of its
// inputs so the same host tab always reconciles to the same entity.
func GenerateID(label, uri string, group schema.GroupID, kind schema.TabKind) schema.TabID {
	switch {
	case kind == schema.TabKindFile && uri != "":
		return schema.FileTabID(uri, group)
	case uri != "":
		return schema.TabID(string(kind) + ":" + uri + "-" + strconv.Itoa(int(group)))
	default:
		return schema.TabID(string(kind) + ":" + label + "-" + strconv.Itoa(int(group)))
	}
}

// generateDiffID returns an id that never collides, even for simultaneous
// comparisons of the same file in the same group.
func generateDiffID() schema.TabID {
	return schema.TabID(fmt.Sprintf("diff-%d-%d", now().UnixNano(), diffCounter.Add(1)))
}

// GenerateIDFromNativeTab recomputes only the id of a native tab. Diff tabs
// and tabs the converter filters out report ok=false.
func GenerateIDFromNativeTab(native schema.NativeTab) (schema.TabID, bool) {
	switch in := native.Input.(type) {
	case schema.FileInput:
		if in.URI == "" {
			return "", false
		}
		return GenerateID(native.Label, in.URI, native.Group, schema.TabKindFile), true
	case schema.CustomInput:
		return GenerateID(native.Label, in.URI, native.Group, schema.TabKindCustom), true
	case schema.NotebookInput:
		return GenerateID(native.Label, in.URI, native.Group, schema.TabKindNotebook), true
	case schema.WebviewInput:
		if IsPreviewSurface(native) {
			return "", false
		}
		return GenerateID(native.Label, "", native.Group, schema.TabKindWebview), true
	case schema.UnknownInput:
		if strings.TrimSpace(native.Label) == "" {
			return "", false
		}
		return GenerateID(native.Label, "", native.Group, schema.TabKindUnknown), true
	default:
		return "", false
	}
}

// DiffSlot identifies a comparison by its two sides and group. Hosts may
// retitle a live comparison, so the slot leaves the label out.
func DiffSlot(original, modified string, group schema.GroupID) string {
	return fmt.Sprintf("diff|%s|%s|%d", original, modified, group)
}

// NativeKey is a deterministic key for diff natives. The reconciliation loop
// uses it to map repeated notifications onto the unique id assigned at
// conversion time.
func NativeKey(native schema.NativeTab) string {
	in, ok := native.Input.(schema.DiffInput)
	if !ok {
		return ""
	}
	return DiffSlot(in.Original, in.Modified, native.Group) + "|" + native.Label
}

func nextSyncVersion() uint64 {
	return syncCounter.Add(1)
}
