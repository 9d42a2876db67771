package delegation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// SponsorClient talks to a VIP-201 style sponsor endpoint: the sponsor
// co-signs a transaction and pays its fee itself, with no token payment
// from the user.
type SponsorClient struct {
	url        string
	httpClient *http.Client
}

func NewSponsorClient(url string, hc *http.Client) *SponsorClient {
	if hc == nil {
		hc = &http.Client{Timeout: time.Minute}
	}
	return &SponsorClient{url: url, httpClient: hc}
}

type sponsorRequest struct {
	Raw    string `json:"raw"`
	Origin string `json:"origin"`
}

type sponsorResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// Sign requests the sponsor's co-signature over the encoded transaction.
func (c *SponsorClient) Sign(ctx context.Context, encodedTx []byte, origin common.Address) ([]byte, error) {
	payload, err := json.Marshal(sponsorRequest{
		Raw:    hexutil.Encode(encodedTx),
		Origin: origin.Hex(),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "sponsor sign")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("sponsor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var sr sponsorResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, errors.Wrap(err, "decode sponsor response")
	}
	if sr.Error != "" {
		return nil, errors.Errorf("sponsor sign: %s", sr.Error)
	}
	return hexutil.Decode(sr.Signature)
}
