package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("capture_list",
	mcp.WithDescription("List every capture in the Recall database ordered by id, joined to its app, file and web URI, "+
		"with the deletion status line (deleted: O|X, first ID, next ID)."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithNumber("limit", mcp.Description("Rows per page (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Rows to skip")),
	mcp.WithBoolean("show_tokens", mcp.Description("Include the ImageToken column")),
)

var browseToolDef = mcp.NewTool("capture_browse",
	mcp.WithDescription("Show the capture at a position in the screenshot browsing set (captures with images ordered by "+
		"time) together with its previous and next neighbours, display sizes and OCR text. "+
		"Without start/end the whole set is browsed."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithNumber("position", mcp.Description("0-based index into the browsing set (default 0)")),
	mcp.WithString("start", mcp.Description("Range start, \"YYYY-MM-DD HH:MM:SS\" in the display offset")),
	mcp.WithString("end", mcp.Description("Range end, \"YYYY-MM-DD HH:MM:SS\" in the display offset")),
	mcp.WithNumber("start_ms", mcp.Description("Range start in Unix milliseconds (used when start is empty)")),
	mcp.WithNumber("end_ms", mcp.Description("Range end in Unix milliseconds (used when end is empty)")),
)

var rangeToolDef = mcp.NewTool("capture_range",
	mcp.WithDescription("List captures with images whose timestamp lies in an inclusive range. "+
		"An empty range is reported with the message \"no images in range\", not an error."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("start", mcp.Description("Range start, \"YYYY-MM-DD HH:MM:SS\" in the display offset")),
	mcp.WithString("end", mcp.Description("Range end, \"YYYY-MM-DD HH:MM:SS\" in the display offset")),
	mcp.WithNumber("start_ms", mcp.Description("Range start in Unix milliseconds")),
	mcp.WithNumber("end_ms", mcp.Description("Range end in Unix milliseconds")),
	mcp.WithNumber("limit", mcp.Description("Rows per page (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Rows to skip")),
)

var statusToolDef = mcp.NewTool("capture_status",
	mcp.WithDescription("Summarise the capture database: counts, first and last capture, image store presence "+
		"and the deletion check."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var reportToolDef = mcp.NewTool("capture_report",
	mcp.WithDescription("Build a forensic summary report in markdown (or HTML). With path, the report is also "+
		"written to disk; paths inside the image store, onto the database, or through symlinks are refused."),
	mcp.WithString("format", mcp.Description("markdown (default) or html"), mcp.Enum("markdown", "html")),
	mcp.WithNumber("limit", mcp.Description("Timeline rows (default 100)")),
	mcp.WithString("path", mcp.Description("Optional output file (.md or .html)")),
)
