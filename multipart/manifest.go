package multipart

import (
	"sort"
	"strconv"
	"strings"
)

// CompletedPart is one (partNumber, ETag) pair the manifest body lists.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// BuildCompleteManifest renders the S3MultiPartComplete request body: an
// ascending-partNumber <CompleteMultipartUpload> manifest (spec.md §4.8 step
// 6).
func BuildCompleteManifest(parts []CompletedPart) []byte {
	sorted := append([]CompletedPart(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString("<CompleteMultipartUpload>")
	for _, p := range sorted {
		sb.WriteString("<Part><PartNumber>")
		sb.WriteString(strconv.Itoa(p.PartNumber))
		sb.WriteString("</PartNumber><ETag>")
		sb.WriteString(escapeXMLText(p.ETag))
		sb.WriteString("</ETag></Part>")
	}
	sb.WriteString("</CompleteMultipartUpload>")
	return []byte(sb.String())
}

func escapeXMLText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
