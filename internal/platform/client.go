// Package platform is the typed client for the fixed set of remote endpoints
// the tool consumes: QR login, token refresh, room read/update, broadcast
// start/stop, area list, account info. Schemas are platform-defined; this
// package maps them onto the domain types and routes all transport through
// the resilient executor.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/nextlevelbuilder/livectl/internal/credential"
	"github.com/nextlevelbuilder/livectl/internal/request"
)

// Endpoints are the API base URLs, overridable for tests.
type Endpoints struct {
	Passport string
	LiveAPI  string
	MainAPI  string
}

// DefaultEndpoints returns the production API bases.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Passport: "https://passport.bilibili.com",
		LiveAPI:  "https://api.live.bilibili.com",
		MainAPI:  "https://api.bilibili.com",
	}
}

// QR poll business codes the client interprets itself.
const (
	codeQRExpired      = 86038
	codeQRNotConfirmed = 86039
	codeQRNotScanned   = 86090
)

// Client calls the remote API through the executor.
type Client struct {
	exec *request.Executor
	eps  Endpoints
	now  func() time.Time

	mu  sync.Mutex
	pol request.Policy
}

// New creates a client with the given retry policy.
func New(exec *request.Executor, pol request.Policy, eps Endpoints) *Client {
	return &Client{exec: exec, eps: eps, pol: pol, now: time.Now}
}

// SetPolicy swaps the retry policy (config hot reload).
func (c *Client) SetPolicy(pol request.Policy) {
	c.mu.Lock()
	c.pol = pol
	c.mu.Unlock()
}

func (c *Client) policy() request.Policy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pol
}

// QRIssue requests a new login QR token.
func (c *Client) QRIssue(ctx context.Context) (*QRCode, error) {
	form := url.Values{"local_id": {"0"}}
	resp, err := c.exec.Do(ctx, request.Spec{
		Method: "POST",
		URL:    c.eps.Passport + "/x/passport-tv-login/qrcode/auth_code",
		Form:   appSign(form, c.now()),
	}, nil, c.policy())
	if err != nil {
		return nil, fmt.Errorf("issue login qr: %w", err)
	}

	var data struct {
		URL      string `json:"url"`
		AuthCode string `json:"auth_code"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.AuthCode == "" {
		return nil, request.NewError(request.KindValidation, "qr issue response missing auth_code")
	}
	return &QRCode{AuthCode: data.AuthCode, URL: data.URL}, nil
}

// qrPollData is the confirmed-login payload.
type qrPollData struct {
	MID          int64  `json:"mid"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	CookieInfo   struct {
		Cookies []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"cookies"`
	} `json:"cookie_info"`
}

// QRPoll checks whether the QR token has been confirmed. A confirmed poll
// returns the finalized credential; the pending and expired outcomes carry
// no credential.
func (c *Client) QRPoll(ctx context.Context, authCode string) (PollOutcome, *credential.Credential, error) {
	form := url.Values{
		"auth_code": {authCode},
		"local_id":  {"0"},
	}
	resp, err := c.exec.Do(ctx, request.Spec{
		Method:     "POST",
		URL:        c.eps.Passport + "/x/passport-tv-login/qrcode/poll",
		Form:       appSign(form, c.now()),
		AllowCodes: []int64{codeQRExpired, codeQRNotConfirmed, codeQRNotScanned},
	}, nil, c.policy())
	if err != nil {
		return PollPending, nil, fmt.Errorf("poll login qr: %w", err)
	}

	switch resp.Code {
	case 0:
		cred, err := c.credentialFromAuthPayload(resp.Data)
		if err != nil {
			return PollPending, nil, err
		}
		return PollConfirmed, cred, nil
	case codeQRExpired:
		return PollExpired, nil, nil
	case codeQRNotConfirmed, codeQRNotScanned:
		return PollPending, nil, nil
	}
	// Unreachable: the executor rejects any other non-zero code.
	return PollPending, nil, request.Business(resp.Code, resp.Message)
}

// Refresh exchanges the refresh token for a fresh credential.
func (c *Client) Refresh(ctx context.Context, cred *credential.Credential) (*credential.Credential, error) {
	form := url.Values{
		"access_key":    {cred.AccessToken},
		"refresh_token": {cred.RefreshToken},
	}
	resp, err := c.exec.Do(ctx, request.Spec{
		Method: "POST",
		URL:    c.eps.Passport + "/x/passport-login/oauth2/refresh_token",
		Form:   appSign(form, c.now()),
	}, cred, c.policy())
	if err != nil {
		return nil, fmt.Errorf("refresh credential: %w", err)
	}

	fresh, err := c.credentialFromAuthPayload(resp.Data)
	if err != nil {
		return nil, err
	}
	if fresh.AccountID == "0" || fresh.AccountID == "" {
		fresh.AccountID = cred.AccountID
	}
	return fresh, nil
}

func (c *Client) credentialFromAuthPayload(raw json.RawMessage) (*credential.Credential, error) {
	var data qrPollData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, request.NewError(request.KindValidation, "auth payload schema mismatch")
	}

	cookies := make(map[string]string, len(data.CookieInfo.Cookies))
	for _, ck := range data.CookieInfo.Cookies {
		if ck.Name != "" {
			cookies[ck.Name] = ck.Value
		}
	}

	cred := &credential.Credential{
		Cookies:      cookies,
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    c.now().Unix() + data.ExpiresIn,
		AccountID:    strconv.FormatInt(data.MID, 10),
	}
	if !cred.Valid() {
		return nil, request.NewError(request.KindValidation, "auth payload incomplete")
	}
	return cred, nil
}

// RoomInfo fetches the operator's own live room.
func (c *Client) RoomInfo(ctx context.Context, cred *credential.Credential) (*Room, error) {
	resp, err := c.exec.Do(ctx, request.Spec{
		URL:   c.eps.LiveAPI + "/xlive/app-blink/v1/room/GetInfo",
		Query: url.Values{"platform": {"pc"}},
	}, cred, c.policy())
	if err != nil {
		return nil, fmt.Errorf("fetch room info: %w", err)
	}

	var data struct {
		RoomID     int64  `json:"room_id"`
		Title      string `json:"title"`
		ParentID   int64  `json:"parent_id"`
		AreaID     int64  `json:"area_v2_id"`
		AreaName   string `json:"area_v2_name"`
		LiveStatus int    `json:"live_status"`
		Cover      string `json:"cover"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, request.NewError(request.KindValidation, "room info schema mismatch")
	}
	if data.RoomID == 0 {
		return nil, request.Business(0, "account owns no live room")
	}
	return &Room{
		RoomID:       data.RoomID,
		Title:        data.Title,
		ParentAreaID: data.ParentID,
		AreaID:       data.AreaID,
		AreaName:     data.AreaName,
		Live:         data.LiveStatus == 1,
		Cover:        data.Cover,
	}, nil
}

// UpdateRoom applies the provided fields to the room; nil fields are left
// untouched server-side. Returns audit info when the platform holds the new
// title for review.
func (c *Client) UpdateRoom(ctx context.Context, cred *credential.Credential, roomID int64, title *string, areaID *int64) (*AuditInfo, error) {
	csrf := cred.Cookie("bili_jct")
	if csrf == "" {
		return nil, request.NewError(request.KindAuthRejected, "credential lacks csrf cookie")
	}

	form := url.Values{
		"room_id":    {strconv.FormatInt(roomID, 10)},
		"csrf":       {csrf},
		"csrf_token": {csrf},
	}
	if title != nil {
		form.Set("title", *title)
	}
	if areaID != nil {
		form.Set("area_id", strconv.FormatInt(*areaID, 10))
	}

	resp, err := c.exec.Do(ctx, request.Spec{
		Method: "POST",
		URL:    c.eps.LiveAPI + "/room/v1/Room/update",
		Form:   form,
	}, cred, c.policy())
	if err != nil {
		return nil, fmt.Errorf("update room: %w", err)
	}

	var data struct {
		AuditInfo *AuditInfo `json:"audit_info"`
	}
	// Audit info is advisory; a payload without it means nothing was held.
	_ = json.Unmarshal(resp.Data, &data)
	return data.AuditInfo, nil
}

// StartLive switches the room live in the given area and returns the RTMP
// ingest credential.
func (c *Client) StartLive(ctx context.Context, cred *credential.Credential, roomID, areaID int64) (*StreamCredential, error) {
	csrf := cred.Cookie("bili_jct")
	if csrf == "" {
		return nil, request.NewError(request.KindAuthRejected, "credential lacks csrf cookie")
	}

	form := url.Values{
		"room_id":  {strconv.FormatInt(roomID, 10)},
		"area_v2":  {strconv.FormatInt(areaID, 10)},
		"platform": {"pc_link"},
		"csrf":     {csrf},
	}
	resp, err := c.exec.Do(ctx, request.Spec{
		Method: "POST",
		URL:    c.eps.LiveAPI + "/room/v1/Room/startLive",
		Form:   form,
	}, cred, c.policy())
	if err != nil {
		return nil, fmt.Errorf("start broadcast: %w", err)
	}

	var data struct {
		RTMP struct {
			Addr string `json:"addr"`
			Code string `json:"code"`
		} `json:"rtmp"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.RTMP.Addr == "" {
		return nil, request.NewError(request.KindValidation, "start response missing rtmp endpoint")
	}
	return &StreamCredential{URL: data.RTMP.Addr, Key: data.RTMP.Code}, nil
}

// StopLive switches the room offline.
func (c *Client) StopLive(ctx context.Context, cred *credential.Credential, roomID int64) error {
	csrf := cred.Cookie("bili_jct")
	if csrf == "" {
		return request.NewError(request.KindAuthRejected, "credential lacks csrf cookie")
	}

	form := url.Values{
		"room_id":  {strconv.FormatInt(roomID, 10)},
		"platform": {"pc_link"},
		"csrf":     {csrf},
	}
	_, err := c.exec.Do(ctx, request.Spec{
		Method: "POST",
		URL:    c.eps.LiveAPI + "/room/v1/Room/stopLive",
		Form:   form,
	}, cred, c.policy())
	if err != nil {
		return fmt.Errorf("stop broadcast: %w", err)
	}
	return nil
}

// AreaList fetches the two-level partition hierarchy.
func (c *Client) AreaList(ctx context.Context) ([]AreaGroup, error) {
	resp, err := c.exec.Do(ctx, request.Spec{
		URL: c.eps.LiveAPI + "/room/v1/Area/getList",
	}, nil, c.policy())
	if err != nil {
		return nil, fmt.Errorf("fetch area list: %w", err)
	}

	// Child ids arrive as strings in this endpoint.
	var data []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		List []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, request.NewError(request.KindValidation, "area list schema mismatch")
	}

	groups := make([]AreaGroup, 0, len(data))
	for _, p := range data {
		group := AreaGroup{ID: p.ID, Name: p.Name}
		for _, ch := range p.List {
			id, err := strconv.ParseInt(ch.ID, 10, 64)
			if err != nil {
				continue
			}
			group.Children = append(group.Children, Area{ID: id, Name: ch.Name, ParentID: p.ID})
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// AccountInfo fetches the account profile and room brief via a WBI-signed
// query.
func (c *Client) AccountInfo(ctx context.Context, cred *credential.Credential) (*Account, error) {
	mid, err := strconv.ParseInt(cred.AccountID, 10, 64)
	if err != nil {
		return nil, request.NewError(request.KindValidation, "credential has no numeric account id")
	}

	imgKey, subKey, err := c.wbiKeys(ctx, cred)
	if err != nil {
		return nil, err
	}

	query := url.Values{"mid": {strconv.FormatInt(mid, 10)}}
	resp, err := c.exec.Do(ctx, request.Spec{
		URL:     c.eps.MainAPI + "/x/space/wbi/acc/info",
		Query:   wbiSign(query, imgKey, subKey, c.now()),
		Referer: "https://www.bilibili.com/",
	}, cred, c.policy())
	if err != nil {
		return nil, fmt.Errorf("fetch account info: %w", err)
	}

	var data struct {
		MID      int64  `json:"mid"`
		Name     string `json:"name"`
		Face     string `json:"face"`
		LiveRoom struct {
			RoomID     int64  `json:"roomid"`
			Title      string `json:"title"`
			LiveStatus int    `json:"liveStatus"`
		} `json:"live_room"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, request.NewError(request.KindValidation, "account info schema mismatch")
	}
	return &Account{
		MID:        data.MID,
		Name:       data.Name,
		Face:       data.Face,
		RoomID:     data.LiveRoom.RoomID,
		RoomTitle:  data.LiveRoom.Title,
		LiveStatus: data.LiveRoom.LiveStatus,
	}, nil
}

// wbiKeys reads the rotating WBI key pair off the nav endpoint.
func (c *Client) wbiKeys(ctx context.Context, cred *credential.Credential) (string, string, error) {
	resp, err := c.exec.Do(ctx, request.Spec{
		URL:        c.eps.MainAPI + "/x/web-interface/nav",
		AllowCodes: []int64{-101}, // nav answers with keys even when logged out
	}, cred, c.policy())
	if err != nil {
		return "", "", fmt.Errorf("fetch wbi keys: %w", err)
	}

	var data struct {
		WbiImg struct {
			ImgURL string `json:"img_url"`
			SubURL string `json:"sub_url"`
		} `json:"wbi_img"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", "", request.NewError(request.KindValidation, "nav response schema mismatch")
	}
	return keyFromBucketURL(data.WbiImg.ImgURL), keyFromBucketURL(data.WbiImg.SubURL), nil
}
