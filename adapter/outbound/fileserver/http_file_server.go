package fileserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

const (
	listClass   = "item-list has-deletable"
	detailClass = "detail"

	// the first two detail rows of a listing are the header and the parent link
	skippedDetails = 2

	// maximum error body kept in a DeleteFileError
	maxErrorBody = 4096
)

// HTTPFileServer talks to a browsable HTTP file server with basic auth:
// HTML directory listings, plain GET downloads and form-based deletes
type HTTPFileServer struct {
	client    *http.Client
	baseURL   *url.URL
	username  string
	password  string
	chunkSize int
	logger    outbound.Logger
}

var _ outbound.RemoteFileDirectory = (*HTTPFileServer)(nil)

func NewHTTPFileServer(baseURI, username, password string, chunkSize int, logger outbound.Logger) (*HTTPFileServer, error) {
	baseURL, err := url.Parse(baseURI)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid file server uri %q: %v", model.ErrConfiguration, baseURI, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: file server uri must be http or https: %q", model.ErrConfiguration, baseURI)
	}
	if chunkSize <= 0 {
		chunkSize = 4096
	}

	client := &http.Client{
		// deletes answer 302 on success, the redirect target is irrelevant
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}

	return &HTTPFileServer{
		client:    client,
		baseURL:   baseURL,
		username:  username,
		password:  password,
		chunkSize: chunkSize,
		logger:    logger,
	}, nil
}

// ListFiles parses the HTML listing of dirPath
func (s *HTTPFileServer) ListFiles(ctx context.Context, dirPath string) ([]*model.RemoteFileInfo, error) {
	resp, err := s.do(ctx, http.MethodGet, dirPath, "", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, fmt.Errorf("%w: listing %s returned status %d", model.ErrTransport, dirPath, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", model.ErrDecode, dirPath, err)
	}

	files, err := parseListing(doc, dirPath)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Listed remote directory", "directory", dirPath, "files", len(files))
	return files, nil
}

// DownloadFile streams filePath to handle in chunks of the configured size.
// The chunk slice is reused between calls.
func (s *HTTPFileServer) DownloadFile(ctx context.Context, filePath string, handle outbound.ChunkHandler) error {
	resp, err := s.do(ctx, http.MethodGet, filePath, "", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return fmt.Errorf("%w: download of %s returned status %d", model.ErrTransport, filePath, resp.StatusCode)
	}

	buf := make([]byte, s.chunkSize)
	for {
		n, err := io.ReadFull(resp.Body, buf)
		if n > 0 {
			if herr := handle(buf[:n]); herr != nil {
				return herr
			}
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("%w: reading %s: %v", model.ErrTransport, filePath, err)
		}
	}
}

// DeleteResource posts the delete form of dirPath; only a 302 counts as success
func (s *HTTPFileServer) DeleteResource(ctx context.Context, name, dirPath string) error {
	form := url.Values{}
	form.Set("name", name)
	form.Set("contextquerystring", "")

	resp, err := s.do(ctx, http.MethodPost, dirPath, "delete",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &model.DeleteFileError{
			Name:       name,
			DirPath:    dirPath,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	drain(resp.Body)
	return nil
}

func (s *HTTPFileServer) do(ctx context.Context, method, path, rawQuery string, body io.Reader, contentType string) (*http.Response, error) {
	target := s.resolve(path, rawQuery)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", model.ErrTransport, path, err)
	}
	req.SetBasicAuth(s.username, s.password)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", model.ErrTransport, method, path, err)
	}
	return resp, nil
}

// resolve maps a remote path such as "/integrations/a.csv" onto the base uri
func (s *HTTPFileServer) resolve(path, rawQuery string) string {
	ref := &url.URL{Path: path, RawQuery: rawQuery}
	return s.baseURL.ResolveReference(ref).String()
}

// parseListing extracts the file rows of the first deletable item list
func parseListing(doc *html.Node, dirPath string) ([]*model.RemoteFileInfo, error) {
	list := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "ul" && classOf(n) == listClass
	})
	if list == nil {
		return nil, fmt.Errorf("%w: listing %s has no file list", model.ErrDecode, dirPath)
	}

	var details []*html.Node
	collect(list, func(n *html.Node) bool {
		return n.Type == html.ElementNode && classOf(n) == detailClass
	}, &details)

	if len(details) <= skippedDetails {
		return []*model.RemoteFileInfo{}, nil
	}

	files := make([]*model.RemoteFileInfo, 0, len(details)-skippedDetails)
	for _, detail := range details[skippedDetails:] {
		fields := detailFields(detail)
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: listing %s has an incomplete row %q", model.ErrDecode, dirPath, fields)
		}

		size, err := model.ParseSizeShorthand(fields[1])
		if err != nil {
			return nil, err
		}

		created, err := time.Parse(model.ListingTimeLayout, fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: listing %s has invalid time %q: %v", model.ErrDecode, dirPath, fields[2], err)
		}

		info, err := model.NewRemoteFileInfo(fields[0], dirPath, size, created)
		if err != nil {
			return nil, err
		}
		files = append(files, info)
	}

	return files, nil
}

// detailFields returns the non-empty trimmed lines of the node text
func detailFields(n *html.Node) []string {
	var b strings.Builder
	appendText(n, &b)

	var fields []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			fields = append(fields, line)
		}
	}
	return fields
}

func appendText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(c, b)
	}
}

func classOf(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			return strings.Join(strings.Fields(attr.Val), " ")
		}
	}
	return ""
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// collect appends the descendants of n matching match, in document order
func collect(n *html.Node, match func(*html.Node) bool, out *[]*html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			*out = append(*out, c)
		}
		collect(c, match, out)
	}
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
}
