package ingest

import (
	"sort"
	"strings"

	"sasfiscal-backend/models"
)

// Defaults for character-based chunking. Stable and predictable for PDFs.
const (
	DefaultChunkChars   = 3500
	DefaultOverlapChars = 400
)

// Page is one extracted PDF page (1-based number).
type Page struct {
	Number int
	Text   string
}

// DocChunk is one chunker output: a sub-chunk of a norm block, never
// crossing a norm boundary.
type DocChunk struct {
	Text       string
	NormKind   string
	NormID     string
	PageStart  int
	PageEnd    int
	ChunkIndex int
	CharStart  int
	CharEnd    int
}

// ChunkerConfig controls segmentation. Header decides whether a line opens
// a new norm block; it defaults to the article-header parser.
type ChunkerConfig struct {
	ChunkChars   int
	OverlapChars int
	Header       func(line string) (normID, normKind string, ok bool)
}

// ArticleHeader adapts ParseArticleHeader for ChunkerConfig.Header.
func ArticleHeader(line string) (string, string, bool) {
	token, ok := ParseArticleHeader(line)
	if !ok {
		return "", "", false
	}
	return token, models.NormKindArticle, true
}

// RuleHeader adapts ParseRuleHeader for ChunkerConfig.Header (RMF mode).
func RuleHeader(line string) (string, string, bool) {
	id, ok := ParseRuleHeader(line)
	if !ok {
		return "", "", false
	}
	return id, models.NormKindRule, true
}

func (c *ChunkerConfig) withDefaults() ChunkerConfig {
	out := ChunkerConfig{ChunkChars: DefaultChunkChars, OverlapChars: DefaultOverlapChars, Header: ArticleHeader}
	if c != nil {
		if c.ChunkChars > 0 {
			out.ChunkChars = c.ChunkChars
		}
		if c.OverlapChars >= 0 && c.OverlapChars < out.ChunkChars {
			out.OverlapChars = c.OverlapChars
		}
		if c.Header != nil {
			out.Header = c.Header
		}
	}
	return out
}

type pageOffset struct {
	offset int
	page   int
}

type normBlock struct {
	normID      string
	normKind    string
	text        string
	pageOffsets []pageOffset
}

// splitBlocks segments pages into norm-bounded blocks. Text before the
// first header goes into a PREAMBULO block.
func splitBlocks(pages []Page, header func(string) (string, string, bool)) []normBlock {
	var blocks []normBlock

	currentID := "PREAMBULO"
	currentKind := models.NormKindPreambulo
	var buf []string
	var offsets []pageOffset
	curLen := 0

	flush := func() {
		joined := strings.Join(buf, "\n")
		trimmed := strings.TrimLeft(joined, " \t\r\n")
		lead := len(joined) - len(trimmed)
		text := strings.TrimRight(trimmed, " \t\r\n")
		if text != "" {
			// Offsets were recorded against the untrimmed text; shift them
			// by the stripped prefix so early chars map to the right page.
			adjusted := offsets
			if lead > 0 && len(offsets) > 0 {
				adjusted = make([]pageOffset, 0, len(offsets))
				for _, po := range offsets {
					off := po.offset - lead
					if off < 0 {
						off = 0
					}
					if n := len(adjusted); n > 0 && adjusted[n-1].offset == off {
						adjusted[n-1].page = po.page
						continue
					}
					adjusted = append(adjusted, pageOffset{off, po.page})
				}
			}
			if len(adjusted) == 0 {
				adjusted = []pageOffset{{0, 1}}
			}
			blocks = append(blocks, normBlock{
				normID:      currentID,
				normKind:    currentKind,
				text:        text,
				pageOffsets: adjusted,
			})
		}
		buf = nil
		offsets = nil
		curLen = 0
	}

	for _, page := range pages {
		lines := strings.Split(page.Text, "\n")
		if page.Text == "" {
			continue
		}

		pageStarted := false
		for _, line := range lines {
			if id, kind, ok := header(line); ok {
				flush()
				currentID = id
				currentKind = kind
				buf = []string{line}
				offsets = []pageOffset{{0, page.Number}}
				curLen = len(line) + 1
				pageStarted = true
				continue
			}

			if !pageStarted {
				if len(buf) > 0 {
					offsets = append(offsets, pageOffset{curLen, page.Number})
				} else {
					offsets = append(offsets, pageOffset{0, page.Number})
				}
				pageStarted = true
			}

			buf = append(buf, line)
			curLen += len(line) + 1
		}
	}

	flush()
	return blocks
}

// pageFor maps a character offset within a block back to its page using a
// binary search over the recorded offset transitions.
func (b *normBlock) pageFor(charOffset int) int {
	if charOffset < 0 {
		charOffset = 0
	}
	i := sort.Search(len(b.pageOffsets), func(i int) bool {
		return b.pageOffsets[i].offset > charOffset
	}) - 1
	if i < 0 {
		return b.pageOffsets[0].page
	}
	return b.pageOffsets[i].page
}

// ChunkDocument runs article-first (or rule-first) chunking: pages are
// segmented into norm blocks, then each block is cut into overlapping
// character windows. Sub-chunks never cross a norm boundary.
func ChunkDocument(pages []Page, cfg *ChunkerConfig) []DocChunk {
	c := cfg.withDefaults()
	blocks := splitBlocks(pages, c.Header)

	var chunks []DocChunk
	for i := range blocks {
		block := &blocks[i]
		text := block.text
		if text == "" {
			continue
		}

		start := 0
		perNormIdx := 0
		total := len(text)

		for start < total {
			end := start + c.ChunkChars
			if end > total {
				end = total
			}
			chunkText := strings.TrimSpace(text[start:end])
			if chunkText != "" {
				chunks = append(chunks, DocChunk{
					Text:       chunkText,
					NormKind:   block.normKind,
					NormID:     block.normID,
					PageStart:  block.pageFor(start),
					PageEnd:    block.pageFor(end - 1),
					ChunkIndex: perNormIdx,
					CharStart:  start,
					CharEnd:    end,
				})
				perNormIdx++
			}

			if end >= total {
				break
			}
			start = end - c.OverlapChars
			if start < 0 {
				start = 0
			}
		}
	}

	return chunks
}

// UniqueNormIDs returns the set of distinct norm ids in ingestion order.
func UniqueNormIDs(chunks []DocChunk) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range chunks {
		if c.NormID != "" && !seen[c.NormID] {
			seen[c.NormID] = true
			ids = append(ids, c.NormID)
		}
	}
	return ids
}
