package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider replays a scripted delta sequence, or a fixed result.
type fakeProvider struct {
	deltas []Delta
	result *Result
	err    error
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) ModelID() string { return "fake-model" }

func (f *fakeProvider) Generate(_ context.Context, _ Request) (*Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeProvider) Stream(_ context.Context, _ Request, emit func(Delta) error) error {
	for _, d := range f.deltas {
		if err := emit(d); err != nil {
			return err
		}
	}
	return f.err
}

func collect(t *testing.T, p Provider) (content, reasoning string) {
	t.Helper()
	err := p.Stream(context.Background(), Request{Message: "hi"}, func(d Delta) error {
		content += d.Content
		reasoning += d.Reasoning
		return nil
	})
	require.NoError(t, err)
	return content, reasoning
}

func TestTagSplitterSingleChunk(t *testing.T) {
	sp := newTagSplitter("think")
	content, reasoning := sp.feed("<think>plan it</think>Answer.")
	tailC, tailR := sp.finish()

	assert.Equal(t, "Answer.", content+tailC)
	assert.Equal(t, "plan it", reasoning+tailR)
}

func TestTagSplitterTagSplitAcrossChunks(t *testing.T) {
	sp := newTagSplitter("think")

	var content, reasoning string
	for _, chunk := range []string{"<th", "ink>Step 1. ", "Step 2.</th", "ink>Ans", "wer."} {
		c, r := sp.feed(chunk)
		content += c
		reasoning += r
	}
	c, r := sp.finish()
	content += c
	reasoning += r

	assert.Equal(t, "Answer.", content)
	assert.Equal(t, "Step 1. Step 2.", reasoning)
}

func TestTagSplitterFalseAlarmPrefix(t *testing.T) {
	sp := newTagSplitter("think")

	// "<thin" looks like an opening tag until the next chunk disambiguates.
	c1, r1 := sp.feed("a <thin")
	c2, r2 := sp.feed("g> b")
	tc, tr := sp.finish()

	assert.Equal(t, "a <thing> b", c1+c2+tc)
	assert.Empty(t, r1+r2+tr)
}

func TestTagSplitterUnterminatedBlockIsReasoning(t *testing.T) {
	sp := newTagSplitter("think")
	content, reasoning := sp.feed("<think>never closed")
	tailC, tailR := sp.finish()

	assert.Empty(t, content+tailC)
	assert.Equal(t, "never closed", reasoning+tailR)
}

func TestTagSplitterMultipleBlocks(t *testing.T) {
	sp := newTagSplitter("think")
	content, reasoning := sp.feed("<think>a</think>x<think>b</think>y")

	assert.Equal(t, "xy", content)
	assert.Equal(t, "ab", reasoning)
}

func TestExtractReasoningStream(t *testing.T) {
	inner := &fakeProvider{deltas: []Delta{
		{Content: "<think>Step 1. "},
		{Content: "Step 2.</think>"},
		{Content: "Answer."},
	}}

	content, reasoning := collect(t, ExtractReasoning(inner, "think"))
	assert.Equal(t, "Answer.", content)
	assert.Equal(t, "Step 1. Step 2.", reasoning)
}

func TestExtractReasoningPassesNativeDeltasThrough(t *testing.T) {
	inner := &fakeProvider{deltas: []Delta{
		{Reasoning: "native thought "},
		{Reasoning: "continues"},
		{Content: "Answer."},
	}}

	content, reasoning := collect(t, ExtractReasoning(inner, "think"))
	assert.Equal(t, "Answer.", content)
	assert.Equal(t, "native thought continues", reasoning)
}

func TestExtractReasoningGenerate(t *testing.T) {
	inner := &fakeProvider{result: &Result{Content: "<think>hmm</think>42"}}

	res, err := ExtractReasoning(inner, "think").Generate(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Content)
	assert.Equal(t, "hmm", res.Reasoning)
}

func TestExtractReasoningGenerateKeepsNativeReasoning(t *testing.T) {
	inner := &fakeProvider{result: &Result{Content: "42", Reasoning: "native"}}

	res, err := ExtractReasoning(inner, "think").Generate(context.Background(), Request{Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Content)
	assert.Equal(t, "native", res.Reasoning)
}

func TestExtractReasoningPropagatesStreamError(t *testing.T) {
	boom := errors.New("upstream broke")
	inner := &fakeProvider{deltas: []Delta{{Content: "partial"}}, err: boom}

	err := ExtractReasoning(inner, "think").Stream(context.Background(), Request{}, func(Delta) error {
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestExtractReasoningPropagatesEmitError(t *testing.T) {
	stop := errors.New("consumer gone")
	inner := &fakeProvider{deltas: []Delta{{Content: "a"}, {Content: "b"}}}

	calls := 0
	err := ExtractReasoning(inner, "think").Stream(context.Background(), Request{}, func(Delta) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
