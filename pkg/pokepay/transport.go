package pokepay

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// newHTTPClient builds the pooled transport used by NewClient. The connect
// timeout bounds dialing and the TLS handshake; the read timeout is applied
// per call in Send.
func newHTTPClient(cfg *ClientConfig, certs []tls.Certificate) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: certs,
		},
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.Timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
	}

	return &http.Client{Transport: transport}
}

// loadClientCertificate reads the mutual TLS identity from a PEM pair or a
// PKCS#12 bundle. It returns nil when neither is configured.
func loadClientCertificate(cfg *ClientConfig) ([]tls.Certificate, error) {
	switch {
	case cfg.PKCS12File != "":
		cert, err := loadPKCS12(cfg.PKCS12File, cfg.PKCS12Password)
		if err != nil {
			return nil, &ConfigError{Field: "PKCS12File", Reason: "cannot load client certificate", Err: err}
		}
		return []tls.Certificate{cert}, nil

	case cfg.CertFile != "" || cfg.KeyFile != "":
		if cfg.CertFile == "" {
			return nil, &ConfigError{Field: "CertFile", Reason: "is required when KeyFile is set"}
		}
		if cfg.KeyFile == "" {
			return nil, &ConfigError{Field: "KeyFile", Reason: "is required when CertFile is set"}
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, &ConfigError{Field: "CertFile", Reason: "cannot load client certificate", Err: err}
		}
		return []tls.Certificate{cert}, nil
	}
	return nil, nil
}

func loadPKCS12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read bundle: %w", err)
	}
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode bundle: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}
