package provider

import (
	"context"
	"strings"
)

// tagSplitter separates inline <tag>...</tag> reasoning blocks from answer
// text. Tags can be split across arbitrary chunk boundaries, so the splitter
// holds back any trailing bytes that could be the start of a tag until the
// next feed decides.
type tagSplitter struct {
	open    string
	close   string
	inside  bool
	pending string
}

func newTagSplitter(tag string) *tagSplitter {
	return &tagSplitter{
		open:  "<" + tag + ">",
		close: "</" + tag + ">",
	}
}

// feed consumes one chunk and returns the content and reasoning text that
// became unambiguous with it.
func (s *tagSplitter) feed(text string) (content, reasoning string) {
	buf := s.pending + text
	s.pending = ""

	var c, r strings.Builder
	for buf != "" {
		marker := s.open
		out := &c
		if s.inside {
			marker = s.close
			out = &r
		}

		if i := strings.Index(buf, marker); i >= 0 {
			out.WriteString(buf[:i])
			buf = buf[i+len(marker):]
			s.inside = !s.inside
			continue
		}

		keep := partialSuffix(buf, marker)
		out.WriteString(buf[:len(buf)-keep])
		s.pending = buf[len(buf)-keep:]
		buf = ""
	}

	return c.String(), r.String()
}

// finish drains held-back bytes at end of stream. An unterminated reasoning
// block stays reasoning; held-back text outside a block is answer content.
func (s *tagSplitter) finish() (content, reasoning string) {
	tail := s.pending
	s.pending = ""
	if tail == "" {
		return "", ""
	}
	if s.inside {
		return "", tail
	}
	return tail, ""
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialSuffix(s, tag string) int {
	max := len(tag) - 1
	if len(s) < max {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if s[len(s)-k:] == tag[:k] {
			return k
		}
	}
	return 0
}

// TagExtractor wraps a Provider whose model emits reasoning as inline tagged
// blocks (e.g. <think>...</think>) and re-surfaces those blocks through the
// normal reasoning channel. Models that already produce native reasoning
// deltas pass through untouched.
type TagExtractor struct {
	inner Provider
	tag   string
}

// ExtractReasoning wraps inner so that <tag>...</tag> blocks in its content
// are delivered as reasoning.
func ExtractReasoning(inner Provider, tag string) *TagExtractor {
	return &TagExtractor{inner: inner, tag: tag}
}

func (t *TagExtractor) Name() string    { return t.inner.Name() }
func (t *TagExtractor) ModelID() string { return t.inner.ModelID() }

// Generate implements Provider.
func (t *TagExtractor) Generate(ctx context.Context, req Request) (*Result, error) {
	res, err := t.inner.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Reasoning != "" {
		// The model already separated reasoning; nothing to extract.
		return res, nil
	}

	sp := newTagSplitter(t.tag)
	content, reasoning := sp.feed(res.Content)
	tailC, tailR := sp.finish()

	return &Result{
		Content:   content + tailC,
		Reasoning: reasoning + tailR,
	}, nil
}

// Stream implements Provider. Content deltas are routed through the splitter;
// native reasoning deltas pass straight through.
func (t *TagExtractor) Stream(ctx context.Context, req Request, emit func(Delta) error) error {
	sp := newTagSplitter(t.tag)

	err := t.inner.Stream(ctx, req, func(d Delta) error {
		if d.Reasoning != "" {
			if err := emit(Delta{Reasoning: d.Reasoning}); err != nil {
				return err
			}
		}
		if d.Content == "" {
			return nil
		}
		content, reasoning := sp.feed(d.Content)
		if content == "" && reasoning == "" {
			return nil
		}
		return emit(Delta{Content: content, Reasoning: reasoning})
	})
	if err != nil {
		return err
	}

	if content, reasoning := sp.finish(); content != "" || reasoning != "" {
		return emit(Delta{Content: content, Reasoning: reasoning})
	}
	return nil
}
