// Package sar files suspicious activity reports for detected fraud rings
// with the regulator's SOAP endpoint.
package sar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/securelink/internal/config"
	"github.com/Dan9191/securelink/internal/models"
	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

const (
	soapNamespace   = "http://www.w3.org/2003/05/soap-envelope"
	reportNamespace = "urn:securelink:sar"
	submitAction    = reportNamespace + "/Submit"
)

// Client submits reports to the SAR endpoint
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new SAR client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.SARURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// BuildReport creates the SOAP envelope describing rings
func BuildReport(rings []*models.FraudRing, generatedAt time.Time) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	envelope := doc.CreateElement("soap12:Envelope")
	envelope.CreateAttr("xmlns:soap12", soapNamespace)
	body := envelope.CreateElement("soap12:Body")

	report := body.CreateElement("SuspiciousActivityReport")
	report.CreateAttr("xmlns", reportNamespace)
	report.CreateAttr("generated", generatedAt.UTC().Format(time.RFC3339))
	report.CreateAttr("count", strconv.Itoa(len(rings)))

	for _, ring := range rings {
		r := report.CreateElement("Ring")
		r.CreateAttr("id", ring.ID)
		r.CreateAttr("fingerprint", ring.Fingerprint)
		r.CreateAttr("created", strconv.FormatInt(ring.Timestamp, 10))

		banks := r.CreateElement("Banks")
		for _, b := range ring.BanksInvolved {
			banks.CreateElement("Bank").SetText(string(b))
		}
		r.CreateElement("TotalAmount").SetText(strconv.FormatInt(ring.TotalAmount(), 10))

		for _, tx := range ring.Transactions {
			t := r.CreateElement("Transaction")
			t.CreateAttr("id", tx.ID)
			t.CreateAttr("bank", string(tx.Bank))
			t.CreateElement("Amount").SetText(strconv.FormatInt(tx.Amount, 10))
			t.CreateElement("Timestamp").SetText(strconv.FormatInt(tx.Timestamp, 10))
			t.CreateElement("Merchant").SetText(tx.Merchant)
			t.CreateElement("Card").SetText(tx.MaskedCard())
			t.CreateElement("Device").SetText(tx.Device)
			if tx.Location.City != "" {
				t.CreateElement("City").SetText(tx.Location.City)
			}
		}
	}

	doc.Indent(2)
	return doc
}

// ReportXML renders BuildReport to bytes
func ReportXML(rings []*models.FraudRing, generatedAt time.Time) ([]byte, error) {
	out, err := BuildReport(rings, generatedAt).WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return out, nil
}

// sendRequest posts a SOAP request to the SAR endpoint
func (c *Client) sendRequest(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", submitAction)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("SAR XML response: %s", string(body))

	return body, nil
}

// parseAcknowledgement extracts the filing reference from the endpoint's reply
func parseAcknowledgement(rawBody []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return "", fmt.Errorf("failed to parse XML: %w", err)
	}

	if fault := doc.FindElement("//Fault/Reason/Text"); fault != nil {
		return "", fmt.Errorf("report rejected: %s", fault.Text())
	}

	ref := doc.FindElement("//Acknowledgement/Reference")
	if ref == nil || ref.Text() == "" {
		return "", fmt.Errorf("no reference found in acknowledgement")
	}
	return ref.Text(), nil
}

// Submit files one report covering rings and returns the filing reference
func (c *Client) Submit(ctx context.Context, rings []*models.FraudRing) (string, error) {
	if len(rings) == 0 {
		return "", fmt.Errorf("no rings to report")
	}

	payload, err := ReportXML(rings, time.Now())
	if err != nil {
		return "", err
	}
	body, err := c.sendRequest(ctx, payload)
	if err != nil {
		return "", err
	}

	ref, err := parseAcknowledgement(body)
	if err != nil {
		return "", err
	}

	c.log.Infof("Filed suspicious activity report %s for %d ring(s)", ref, len(rings))
	return ref, nil
}
