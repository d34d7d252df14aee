package counting

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	domainCounting "github.com/jbctechsolutions/counttokens/internal/domain/counting"
	domainErrors "github.com/jbctechsolutions/counttokens/internal/domain/errors"
	"github.com/jbctechsolutions/counttokens/internal/domain/tokenizer"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/logging"
)

// fallbackEncoding names the single-byte encoding used when a file is not UTF-8.
const fallbackEncoding = "latin-1"

// readBufferSize is the bufio buffer used under the chunk reader.
const readBufferSize = 64 * 1024

// CountLargeFile counts a file in chunks of opts.ChunkSize characters, each
// extended to the next line break, so memory stays bounded by the chunk size
// plus the longest line. If the file is not valid UTF-8 the count restarts
// once under latin-1, which decodes every byte. Approximation needs no
// streaming and is handed to CountFile.
func (e *Engine) CountLargeFile(ctx context.Context, path string, opts domainCounting.Options) (int, error) {
	opts = opts.WithDefaults()
	if opts.Approximation.Enabled() {
		return e.CountFile(ctx, path, opts)
	}
	if opts.ChunkSize < 1 {
		return 0, domainErrors.NewError(domainErrors.CodeValidation,
			fmt.Sprintf("chunk size %d", opts.ChunkSize), domainErrors.ErrInvalidChunkSize)
	}

	enc, err := e.resolver.Resolve(opts.Encoding)
	if err != nil {
		return 0, err
	}

	ctx = logging.WithPath(ctx, path)
	ctx, span := e.tracer.StartFileSpan(ctx, path, true)

	tokens, chunks, err := e.streamPass(ctx, path, enc, opts.ChunkSize, false)
	fallback := false
	if errors.Is(err, domainErrors.ErrDecode) {
		fallback = true
		logging.LogDecodeFallback(ctx, e.logger, path, fallbackEncoding)
		tokens, chunks, err = e.streamPass(ctx, path, enc, opts.ChunkSize, true)
	}
	if err != nil {
		span.EndWithError(err)
		return 0, err
	}

	span.SetChunks(chunks, fallback)
	span.SetTokens(tokens)
	span.End()
	return tokens, nil
}

// streamPass opens path and sums the tokens of every realigned chunk.
// With latin1 set the bytes are decoded as ISO-8859-1 and cannot fault.
func (e *Engine) streamPass(ctx context.Context, path string, enc tokenizer.Encoder, chunkSize int, latin1 bool) (tokens, chunks int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, domainErrors.IOError(path, err)
	}
	defer f.Close()

	var src io.Reader = f
	if latin1 {
		src = charmap.ISO8859_1.NewDecoder().Reader(f)
	}
	cr := newChunkReader(bufio.NewReaderSize(src, readBufferSize), chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		chunk, err := cr.next()
		if err == io.EOF {
			return tokens, chunks, nil
		}
		if err != nil {
			return 0, 0, wrapReadError(path, err)
		}

		n := tokenizer.Count(enc, chunk)
		logging.LogChunk(ctx, e.logger, chunks, utf8.RuneCountInString(chunk), n)
		tokens += n
		chunks++
	}
}

// wrapReadError classifies an error from the chunk reader.
func wrapReadError(path string, err error) error {
	if errors.Is(err, domainErrors.ErrDecode) {
		return domainErrors.WithContext(
			domainErrors.NewError(domainErrors.CodeDecode, "file is not valid UTF-8", err),
			"path", path)
	}
	return domainErrors.IOError(path, err)
}

// chunkReader yields successive chunks of up to size characters, each
// extended through the next newline unless it already ends with one or the
// input is exhausted. Line endings are translated as they are read: "\r\n"
// and a lone "\r" both become "\n".
type chunkReader struct {
	r    *bufio.Reader
	size int
	buf  strings.Builder
}

func newChunkReader(r *bufio.Reader, size int) *chunkReader {
	return &chunkReader{r: r, size: size}
}

// next returns the next chunk, or io.EOF when nothing is left.
// Invalid UTF-8 returns an error wrapping ErrDecode.
func (c *chunkReader) next() (string, error) {
	c.buf.Reset()

	var last rune
	for n := 0; n < c.size; n++ {
		r, err := c.readRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		c.buf.WriteRune(r)
		last = r
	}

	if c.buf.Len() == 0 {
		return "", io.EOF
	}

	for last != '\n' {
		r, err := c.readRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		c.buf.WriteRune(r)
		last = r
	}

	return c.buf.String(), nil
}

// readRune returns the next character with line endings translated. A "\r"
// ending one read still pairs with a "\n" starting the next.
func (c *chunkReader) readRune() (rune, error) {
	r, size, err := c.r.ReadRune()
	if err != nil {
		return 0, err
	}
	if r == utf8.RuneError && size == 1 {
		return 0, domainErrors.ErrDecode
	}
	if r != '\r' {
		return r, nil
	}
	if next, err := c.r.Peek(1); err == nil && next[0] == '\n' {
		_, _ = c.r.Discard(1)
	}
	return '\n', nil
}
