package crypto

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// CreateTLSConfiguration builds a *tls.Config from raw PEM bytes supplied in a
// registration request. Client material (cert/key) is only required when
// client verification is on, the CA only when server verification is on.
func CreateTLSConfiguration(caCert, cert, key []byte, skipClientVerify, skipServerVerify bool) (*tls.Config, error) {
	config := &tls.Config{}

	if !skipClientVerify {
		certificate, err := tls.X509KeyPair(cert, key)
		if err != nil {
			return nil, fmt.Errorf("load client certificate/key pair: %w", err)
		}
		config.Certificates = []tls.Certificate{certificate}
	}

	if !skipServerVerify {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = pool
	}
	config.InsecureSkipVerify = skipServerVerify

	return config, nil
}
