package convert

import (
	"path"
	"slices"
	"strings"

	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/schema"
)

var (
	remoteSchemes = []string{"vscode-remote", "vscode-vfs", "ssh", "sftp", "http", "https"}

	categoryByExt = map[string]schema.FileCategory{
		".md": schema.CategoryMarkdown, ".markdown": schema.CategoryMarkdown, ".mdx": schema.CategoryMarkdown,
		".go": schema.CategoryCode, ".ts": schema.CategoryCode, ".tsx": schema.CategoryCode, ".js": schema.CategoryCode,
		".jsx": schema.CategoryCode, ".py": schema.CategoryCode, ".rs": schema.CategoryCode, ".java": schema.CategoryCode,
		".c": schema.CategoryCode, ".h": schema.CategoryCode, ".cpp": schema.CategoryCode, ".rb": schema.CategoryCode,
		".sh": schema.CategoryCode, ".swift": schema.CategoryCode, ".kt": schema.CategoryCode, ".cs": schema.CategoryCode,
		".json": schema.CategoryConfig, ".yaml": schema.CategoryConfig, ".yml": schema.CategoryConfig,
		".toml": schema.CategoryConfig, ".ini": schema.CategoryConfig, ".env": schema.CategoryConfig, ".xml": schema.CategoryConfig,
		".css": schema.CategoryStyle, ".scss": schema.CategoryStyle, ".less": schema.CategoryStyle,
		".csv": schema.CategoryData, ".tsv": schema.CategoryData, ".sql": schema.CategoryData, ".parquet": schema.CategoryData,
		".png": schema.CategoryImage, ".jpg": schema.CategoryImage, ".jpeg": schema.CategoryImage, ".gif": schema.CategoryImage,
		".svg": schema.CategoryImage, ".webp": schema.CategoryImage, ".ico": schema.CategoryImage,
		".txt": schema.CategoryText, ".log": schema.CategoryText, ".rst": schema.CategoryText,
	}

	binaryExts = []string{
		".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico", ".pdf", ".zip", ".gz", ".tar",
		".exe", ".dll", ".so", ".dylib", ".bin", ".wasm", ".woff", ".woff2", ".ttf", ".parquet",
	}
)

// Enrich fills the derived metadata fields from the locator and label.
func Enrich(md schema.TabMetadata) schema.TabMetadata {
	locator := md.URI
	md.Scheme = classify.Scheme(locator)
	md.FileName = classify.BaseName(locator)
	if md.FileName == "" {
		md.FileName = md.Label
	}
	md.Extension = strings.ToLower(path.Ext(md.FileName))
	if p := classify.Path(locator); p != "" {
		md.Directory = path.Dir(p)
	}
	md.IsRemote = slices.Contains(remoteSchemes, md.Scheme)
	md.IsUntitled = md.Scheme == "untitled"
	md.IsBinary = slices.Contains(binaryExts, md.Extension)
	md.Category = categorize(md)
	if md.Tooltip == "" {
		md.Tooltip = tooltipFor(md)
	}
	return md
}

// IsMarkdown reports whether the metadata describes a markdown file.
func IsMarkdown(md schema.TabMetadata) bool {
	return md.Category == schema.CategoryMarkdown
}

func categorize(md schema.TabMetadata) schema.FileCategory {
	if md.Kind == schema.TabKindWebview || md.Kind == schema.TabKindUnknown {
		return schema.CategoryOther
	}
	if cat, ok := categoryByExt[md.Extension]; ok {
		if cat != schema.CategoryImage && md.IsBinary {
			return schema.CategoryBinary
		}
		return cat
	}
	if md.IsBinary {
		return schema.CategoryBinary
	}
	if md.Extension == "" {
		return schema.CategoryText
	}
	return schema.CategoryOther
}

func tooltipFor(md schema.TabMetadata) string {
	if md.Kind == schema.TabKindDiff && md.OriginalURI != "" && md.ModifiedURI != "" {
		return classify.Path(md.OriginalURI) + " ↔ " + classify.Path(md.ModifiedURI)
	}
	if p := classify.Path(md.URI); p != "" {
		return p
	}
	return md.Label
}
