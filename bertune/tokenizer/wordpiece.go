package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	internal "github.com/ZanzyTHEbar/bertune/bertune"
	"github.com/ZanzyTHEbar/bertune/bertune/encoding"

	"github.com/armon/go-radix"
	"golang.org/x/text/unicode/norm"
)

// vocab maps WordPiece tokens to ids and indexes them in two patricia trees
// for O(k) longest-prefix matching: one for word-initial pieces, one for
// "##" continuation pieces with the marker stripped.
type vocab struct {
	ids          map[string]int64
	initial      *radix.Tree
	continuation *radix.Tree

	unkID  int64
	clsID  int64
	sepID  int64
	padID  int64
	maskID int64
}

func loadVocab(path string) (*vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	v := &vocab{
		ids:          make(map[string]int64, 32768),
		initial:      radix.New(),
		continuation: radix.New(),
		unkID:        internal.DefaultUNKTokenID,
		clsID:        internal.DefaultCLSTokenID,
		sepID:        internal.DefaultSEPTokenID,
		padID:        internal.DefaultPADTokenID,
		maskID:       internal.DefaultMaskTokenID,
	}
	var idx int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		v.ids[tok] = idx
		if rest, ok := strings.CutPrefix(tok, "##"); ok {
			v.continuation.Insert(rest, idx)
		} else {
			v.initial.Insert(tok, idx)
		}
		idx++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	if idx == 0 {
		return nil, fmt.Errorf("%w: empty vocab at %s", ErrUnsupported, path)
	}
	// Real special token ids take precedence over the defaults.
	for tok, dst := range map[string]*int64{
		internal.UNKToken:  &v.unkID,
		internal.CLSToken:  &v.clsID,
		internal.SEPToken:  &v.sepID,
		internal.PADToken:  &v.padID,
		internal.MaskToken: &v.maskID,
	} {
		if id, ok := v.ids[tok]; ok {
			*dst = id
		}
	}
	return v, nil
}

// WordPiece is a self-contained BERT tokenizer: basic tokenization (clean,
// lowercase, accent stripping, punctuation and CJK splitting) followed by
// greedy longest-match subword decomposition against the radix-indexed vocab.
type WordPiece struct {
	vocab     *vocab
	maxSeqLen int
	lowercase bool
}

// NewWordPiece builds a WordPiece tokenizer from a vocab.txt file.
func NewWordPiece(vocabPath string, cfg Config) (*WordPiece, error) {
	if cfg.MaxSeqLen <= 2 {
		return nil, fmt.Errorf("%w: maxSeqLen must exceed the two marker tokens", ErrUnsupported)
	}
	v, err := loadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	return &WordPiece{vocab: v, maxSeqLen: cfg.MaxSeqLen, lowercase: cfg.Lowercase}, nil
}

// TokenizeText splits raw text into WordPiece subword tokens.
func (w *WordPiece) TokenizeText(text string) []string {
	var out []string
	for _, word := range w.basicTokenize(text) {
		out = append(out, w.wordpieceToken(word)...)
	}
	return out
}

// IDs converts subword tokens to vocabulary ids, mapping unknowns to [UNK].
func (w *WordPiece) IDs(tokens []string) []int64 {
	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		id, ok := w.vocab.ids[tok]
		if !ok {
			id = w.vocab.unkID
		}
		ids[i] = id
	}
	return ids
}

// Tokenize encodes each text as [CLS] tokens [SEP], padded to MaxSeqLen.
func (w *WordPiece) Tokenize(texts []string) ([][]int64, [][]int64, [][]int64, error) {
	inputIDs := make([][]int64, len(texts))
	masks := make([][]int64, len(texts))
	typeIDs := make([][]int64, len(texts))
	for i, text := range texts {
		toks := w.TokenizeText(text)
		if max := w.maxSeqLen - 2; len(toks) > max {
			toks = toks[:max]
		}
		ids, segs := w.wrap(w.IDs(toks), nil)
		padded, segsPadded, mask, err := encoding.PadTo(ids, segs, w.maxSeqLen, w.vocab.padID)
		if err != nil {
			return nil, nil, nil, err
		}
		inputIDs[i], typeIDs[i], masks[i] = padded, segsPadded, mask
	}
	return inputIDs, masks, typeIDs, nil
}

// TokenizePairs encodes sentence pairs as [CLS] a [SEP] b [SEP] with type id
// 1 over the second sentence, truncating the longer sentence first until the
// pair fits.
func (w *WordPiece) TokenizePairs(first, second []string) ([][]int64, [][]int64, [][]int64, error) {
	if len(first) != len(second) {
		return nil, nil, nil, fmt.Errorf("%w: %d vs %d", ErrPairMismatch, len(first), len(second))
	}
	inputIDs := make([][]int64, len(first))
	masks := make([][]int64, len(first))
	typeIDs := make([][]int64, len(first))
	for i := range first {
		a := w.TokenizeText(first[i])
		b := w.TokenizeText(second[i])
		a, b = truncatePair(a, b, w.maxSeqLen-3)
		ids, segs := w.wrap(w.IDs(a), w.IDs(b))
		padded, segsPadded, mask, err := encoding.PadTo(ids, segs, w.maxSeqLen, w.vocab.padID)
		if err != nil {
			return nil, nil, nil, err
		}
		inputIDs[i], typeIDs[i], masks[i] = padded, segsPadded, mask
	}
	return inputIDs, masks, typeIDs, nil
}

// wrap adds the [CLS]/[SEP] markers and segment ids around id sequences
// using this vocab's special token ids.
func (w *WordPiece) wrap(a, b []int64) ([]int64, []int64) {
	ids := make([]int64, 0, len(a)+len(b)+3)
	ids = append(ids, w.vocab.clsID)
	ids = append(ids, a...)
	ids = append(ids, w.vocab.sepID)
	segs := make([]int64, len(ids), cap(ids))
	if b != nil {
		ids = append(ids, b...)
		ids = append(ids, w.vocab.sepID)
		for j := 0; j < len(b)+1; j++ {
			segs = append(segs, 1)
		}
	}
	return ids, segs
}

// truncatePair trims the longer sequence one token at a time until the pair
// fits within budget.
func truncatePair(a, b []string, budget int) ([]string, []string) {
	for len(a)+len(b) > budget {
		if len(a) > len(b) {
			a = a[:len(a)-1]
		} else {
			b = b[:len(b)-1]
		}
	}
	return a, b
}

// basicTokenize applies BERT basic tokenization: clean, optional lowercase
// and accent stripping, CJK isolation, whitespace and punctuation splitting.
func (w *WordPiece) basicTokenize(text string) []string {
	text = cleanText(text)
	text = isolateCJK(text)
	if w.lowercase {
		text = strings.ToLower(text)
		text = stripAccents(text)
	}
	var tokens []string
	for _, word := range strings.Fields(text) {
		tokens = append(tokens, splitPunct(word)...)
	}
	return tokens
}

// wordpieceToken decomposes one basic token by greedy longest-prefix lookup
// against the radix-indexed vocab. An undecomposable token maps to [UNK].
func (w *WordPiece) wordpieceToken(token string) []string {
	if len([]rune(token)) > 200 {
		return []string{internal.UNKToken}
	}
	var pieces []string
	rest := token
	tree := w.vocab.initial
	for len(rest) > 0 {
		prefix, _, ok := tree.LongestPrefix(rest)
		if !ok || prefix == "" {
			return []string{internal.UNKToken}
		}
		if tree == w.vocab.initial {
			pieces = append(pieces, prefix)
		} else {
			pieces = append(pieces, "##"+prefix)
		}
		rest = rest[len(prefix):]
		tree = w.vocab.continuation
	}
	return pieces
}

func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == 0 || r == 0xFFFD || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isolateCJK(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, r := range text {
		if isCJK(r) {
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitPunct(word string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range word {
		if isPunct(r) {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			tokens = append(tokens, string(r))
		} else {
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunct(r rune) bool {
	// ASCII ranges BERT treats as punctuation, plus Unicode punct categories.
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0xF900 && r <= 0xFAFF)
}
