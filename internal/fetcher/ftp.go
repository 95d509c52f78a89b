// Package fetcher downloads remote region sources to local files.
package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cellneigh/internal/resilience"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
	Retry   resilience.Policy
}

// FTPFetcher downloads files over FTP, logging in anonymously unless the URL
// carries credentials.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	onRetry := opts.Retry.OnRetry
	opts.Retry = resilience.NewPolicy(opts.Retry.Attempts, opts.Retry.Backoff)
	opts.Retry.OnRetry = onRetry
	return &FTPFetcher{opts: opts}
}

type ftpTarget struct {
	host     string
	path     string
	user     string
	password string
}

// parseFTPURL extracts host (with port), path and login from an FTP URL.
func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}

	t := ftpTarget{host: u.Host, path: u.Path, user: "anonymous", password: "anonymous@"}
	if _, _, splitErr := net.SplitHostPort(t.host); splitErr != nil {
		t.host = net.JoinHostPort(t.host, "21")
	}
	if t.path == "" || t.path == "/" {
		return ftpTarget{}, eris.New("fetcher: empty path in ftp url")
	}
	if u.User != nil {
		t.user = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			t.password = pw
		}
	}
	return t, nil
}

// ftpConnReader closes the FTP response and the connection together.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "fetcher: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "fetcher: quit ftp connection")
	}
	return nil
}

// Download connects to the FTP server and returns a reader over the file.
// The caller must close it to release the connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	target, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("fetcher: ftp connect", zap.String("host", target.host), zap.String("path", target.path))

	conn, err := ftp.Dial(target.host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: ftp dial")
	}
	if err := conn.Login(target.user, target.password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}
	resp, err := conn.Retr(target.path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "fetcher: ftp retrieve %s", target.path)
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// DownloadToFile downloads ftpURL to path, retrying transient failures, and
// returns the bytes written by the successful attempt.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	retry := f.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(ftpURL)
	}

	var written int64
	err := retry.Do(ctx, func(ctx context.Context) error {
		n, err := f.downloadOnce(ctx, ftpURL, path)
		written = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// downloadOnce copies one transfer to path. The server's closing reply and
// the file close are both checked so a cut transfer or failed flush never
// leaves a truncated file behind.
func (f *FTPFetcher) downloadOnce(ctx context.Context, ftpURL, path string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		_ = rc.Close()
		return 0, eris.Wrap(err, "fetcher: create file")
	}

	n, err := io.Copy(file, rc)
	if err != nil {
		err = eris.Wrap(err, "fetcher: write file")
	}
	if closeErr := rc.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = eris.Wrap(closeErr, "fetcher: close file")
	}
	if err != nil {
		_ = os.Remove(path)
		return n, err
	}
	return n, nil
}
