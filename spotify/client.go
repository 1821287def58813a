// Package spotify is a minimal Spotify Web API client covering what the
// metadata fetch step needs: a client-credentials token and the four
// resource endpoints behind playlist, album, artist and track links.
package spotify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/xeptore/flaw/v8"

	"github.com/plsyncd/plsync/config"
	"github.com/plsyncd/plsync/errutil"
	"github.com/plsyncd/plsync/httputil"
	"github.com/plsyncd/plsync/meta"
)

const (
	tokenURL   = "https://accounts.spotify.com/api/token" //nolint:gosec
	apiBaseURL = "https://api.spotify.com/v1"
)

var ErrUnauthorized = errors.New("Unauthorized")

type Client struct {
	creds          config.Credentials
	http           *http.Client
	token          string
	tokenExpiresAt time.Time
}

func NewClient(creds config.Credentials) *Client {
	return &Client{
		creds:          creds,
		http:           &http.Client{},
		token:          "",
		tokenExpiresAt: time.Time{},
	}
}

// Verify exercises the credentials once. Called at startup so bad
// credentials fail the run before any link is processed.
func (c *Client) Verify(ctx context.Context) error {
	_, err := c.accessToken(ctx)
	return err
}

func (c *Client) accessToken(ctx context.Context) (token string, err error) {
	if c.token != "" && time.Now().Add(30*time.Second).Before(c.tokenExpiresAt) {
		return c.token, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, config.TokenRequestTimeout)
	defer cancel()

	reqParams := make(url.Values, 1)
	reqParams.Add("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, tokenURL, strings.NewReader(reqParams.Encode()))
	if nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return "", flaw.From(fmt.Errorf("failed to create token request: %v", err)).Append(flawP)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.creds.ClientID+":"+c.creds.ClientSecret)))

	response, err := c.http.Do(req)
	if nil != err {
		switch {
		case errutil.IsContext(reqCtx):
			return "", reqCtx.Err()
		default:
			flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
			return "", flaw.From(fmt.Errorf("failed to send token request: %v", err)).Append(flawP)
		}
	}
	defer func() {
		if closeErr := response.Body.Close(); nil != closeErr {
			closeErr = flaw.From(fmt.Errorf("failed to close token response body: %v", closeErr))
			if nil == err {
				err = closeErr
			}
		}
	}()
	flawP := flaw.P{"response": errutil.HTTPResponseFlawPayload(response)}

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized:
		return "", ErrUnauthorized
	default:
		return "", flaw.From(fmt.Errorf("unexpected token response status code: %d", response.StatusCode)).Append(flawP)
	}

	respBytes, err := httputil.ReadResponseBody(reqCtx, response)
	if nil != err {
		return "", err
	}

	var respBody struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		flawP["response_body"] = string(respBytes)
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return "", flaw.From(fmt.Errorf("failed to decode token response body: %v", err)).Append(flawP)
	}
	if respBody.AccessToken == "" {
		flawP["response_body"] = string(respBytes)
		return "", flaw.From(errors.New("token response carries no access token")).Append(flawP)
	}

	c.token = respBody.AccessToken
	c.tokenExpiresAt = time.Now().Add(time.Duration(respBody.ExpiresIn) * time.Second)
	return c.token, nil
}

func endpointOf(kind meta.ContainerKind) string {
	switch kind {
	case meta.KindPlaylist:
		return "playlists"
	case meta.KindAlbum:
		return "albums"
	case meta.KindArtist:
		return "artists"
	case meta.KindTrack:
		return "tracks"
	default:
		panic(fmt.Sprintf("unsupported container kind %q", kind))
	}
}

// Resource fetches the full metadata blob behind a Spotify link. The raw
// body is returned untouched so it can be persisted as-is.
func (c *Client) Resource(ctx context.Context, link string) (blob []byte, err error) {
	kind, id, err := ParseLink(link)
	if nil != err {
		return nil, err
	}

	token, err := c.accessToken(ctx)
	if nil != err {
		return nil, err
	}

	reqURL, err := url.JoinPath(apiBaseURL, endpointOf(kind), id)
	if nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to create resource URL: %v", err)).Append(flawP)
	}
	flawP := flaw.P{"url": reqURL}

	reqCtx, cancel := context.WithTimeout(ctx, config.MetadataRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to create resource request: %v", err)).Append(flawP)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	response, err := c.http.Do(req)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		default:
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, flaw.From(fmt.Errorf("failed to send resource request: %v", err)).Append(flawP)
		}
	}
	defer func() {
		if closeErr := response.Body.Close(); nil != closeErr {
			closeErr = flaw.From(fmt.Errorf("failed to close resource response body: %v", closeErr)).Append(flawP)
			if nil == err {
				err = closeErr
			}
		}
	}()
	flawP["response"] = errutil.HTTPResponseFlawPayload(response)

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, flaw.From(fmt.Errorf("unexpected resource response status code: %d", response.StatusCode)).Append(flawP)
	}

	respBytes, err := httputil.ReadResponseBody(reqCtx, response)
	if nil != err {
		return nil, err
	}
	return respBytes, nil
}

// DownloadImage fetches cover art bytes. Callers treat failures here as
// non-fatal.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) (b []byte, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, config.CoverDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, imageURL, nil)
	if nil != err {
		flawP := flaw.P{"url": imageURL, "err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to create image request: %v", err)).Append(flawP)
	}
	flawP := flaw.P{"url": imageURL}

	response, err := c.http.Do(req)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		default:
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, flaw.From(fmt.Errorf("failed to send image request: %v", err)).Append(flawP)
		}
	}
	defer func() {
		if closeErr := response.Body.Close(); nil != closeErr {
			closeErr = flaw.From(fmt.Errorf("failed to close image response body: %v", closeErr)).Append(flawP)
			if nil == err {
				err = closeErr
			}
		}
	}()
	flawP["response"] = errutil.HTTPResponseFlawPayload(response)

	if response.StatusCode != http.StatusOK {
		return nil, flaw.From(fmt.Errorf("unexpected image response status code: %d", response.StatusCode)).Append(flawP)
	}

	respBytes, err := httputil.ReadResponseBody(reqCtx, response)
	if nil != err {
		return nil, err
	}
	return respBytes, nil
}
