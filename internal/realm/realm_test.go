package realm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/keithlinneman/httpfilters/internal/log"
)

type fakeSSM struct {
	value *string
	err   error
	calls []string
	dec   bool
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls = append(f.calls, aws.ToString(in.Name))
	f.dec = aws.ToBool(in.WithDecryption)
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: f.value}}, nil
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeSSM
		want    string
		wantErr string
	}{
		{"value", &fakeSSM{value: aws.String("  Archive  \n")}, "Archive", ""},
		{"no value", &fakeSSM{}, "", "has no value"},
		{"blank", &fakeSSM{value: aws.String("   ")}, "", "is empty"},
		{"quote", &fakeSSM{value: aws.String(`a"b`)}, "", "not a valid realm"},
		{"api error", &fakeSSM{err: errors.New("denied")}, "", "get SSM parameter /app/realm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fetch(context.Background(), tt.fake, "/app/realm")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %q, %v", got, err)
			}
			if !tt.fake.dec {
				t.Fatal("parameter should be read with decryption")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	if got := Resolve(ctx, log.Nop(), nil, "/p", "Fallback"); got != "Fallback" {
		t.Fatalf("nil client: %q", got)
	}

	f := &fakeSSM{value: aws.String("Remote")}
	if got := Resolve(ctx, log.Nop(), f, "", "Fallback"); got != "Fallback" || len(f.calls) != 0 {
		t.Fatalf("empty param: %q calls=%v", got, f.calls)
	}
	if got := Resolve(ctx, log.Nop(), f, "/p", "Fallback"); got != "Remote" {
		t.Fatalf("lookup: %q", got)
	}

	f.err = errors.New("outage")
	if got := Resolve(ctx, log.Nop(), f, "/p", "Fallback"); got != "Fallback" {
		t.Fatalf("failed lookup: %q", got)
	}
}
