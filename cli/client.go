package cli

import (
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/frankonly/blockseal/api"
)

var apiClient *api.SealerClient

// Client news or returns a sealer client
func Client() (*api.SealerClient, error) {
	if apiClient != nil {
		return apiClient, nil
	}

	creds := insecure.NewCredentials()
	if secureConn {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts := append(api.DialOptions(), grpc.WithTransportCredentials(creds))
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect with %s: %w", endpoint, err)
	}

	apiClient = api.NewSealerClient(conn)
	return apiClient, nil
}
