package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// mockSSMClient answers GetParameters from a fixed map and records batches.
type mockSSMClient struct {
	values  map[string]string
	err     error
	batches [][]string
}

func (m *mockSSMClient) GetParameters(_ context.Context, params *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.batches = append(m.batches, params.Names)
	if m.err != nil {
		return nil, m.err
	}
	if params.WithDecryption == nil || !*params.WithDecryption {
		return nil, errors.New("decryption not requested")
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range params.Names {
		v, ok := m.values[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{
			Name:  aws.String(name),
			Value: aws.String(v),
		})
	}
	return out, nil
}

func TestSSMProvider_EmptyKeys(t *testing.T) {
	client := &mockSSMClient{}
	provider := NewSSMProvider(client)

	result, err := provider.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || len(result) != 0 {
		t.Errorf("expected empty non-nil map, got %v", result)
	}
	if len(client.batches) != 0 {
		t.Errorf("expected no SSM calls, got %d", len(client.batches))
	}
}

func TestSSMProvider_BatchesOfTen(t *testing.T) {
	values := make(map[string]string)
	var keys []string
	for i := 0; i < 23; i++ {
		k := fmt.Sprintf("/prod/ordernotify/key%02d", i)
		keys = append(keys, k)
		values[k] = fmt.Sprintf("v%02d", i)
	}
	client := &mockSSMClient{values: values}
	provider := NewSSMProvider(client)

	result, err := provider.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(client.batches))
	}
	if len(client.batches[0]) != 10 || len(client.batches[1]) != 10 || len(client.batches[2]) != 3 {
		t.Errorf("unexpected batch sizes: %d, %d, %d",
			len(client.batches[0]), len(client.batches[1]), len(client.batches[2]))
	}
	if len(result) != 23 || result["/prod/ordernotify/key07"] != "v07" {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestSSMProvider_InvalidParameters(t *testing.T) {
	client := &mockSSMClient{values: map[string]string{"/a": "1"}}
	provider := NewSSMProvider(client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/a", "/missing"})
	if err == nil {
		t.Fatal("expected error for invalid parameter")
	}
	if !strings.Contains(err.Error(), "/missing") {
		t.Errorf("error should name the missing parameter, got: %v", err)
	}
}

func TestSSMProvider_ClientError(t *testing.T) {
	client := &mockSSMClient{err: errors.New("throttled")}
	provider := NewSSMProvider(client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/a"})
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestSSMProvider_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &mockSSMClient{values: map[string]string{"/a": "1"}}
	provider := NewSSMProvider(client)

	_, err := provider.GetParametersBatch(ctx, []string{"/a"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(client.batches) != 0 {
		t.Errorf("expected no SSM calls after cancellation, got %d", len(client.batches))
	}
}
