package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	in  *ssm.GetParameterInput
	out *ssm.GetParameterOutput
	err error
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	return f.out, f.err
}

func withValue(v *string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: aws.String("p"), Value: v}}
}

func TestGetRequestsDecryptedValue(t *testing.T) {
	api := &fakeSSM{out: withValue(aws.String(" 123:ABC\n"))}
	s, err := New(api)
	require.NoError(t, err)

	v, err := s.Get(context.Background(), " /relaybot/token ")
	require.NoError(t, err)
	assert.Equal(t, "123:ABC", v)
	assert.Equal(t, "/relaybot/token", aws.ToString(api.in.Name))
	assert.True(t, aws.ToBool(api.in.WithDecryption))
}

func TestGetFailures(t *testing.T) {
	cases := map[string]struct {
		api  *fakeSSM
		name string
		want string
	}{
		"api error":     {api: &fakeSSM{err: errors.New("AccessDenied")}, name: "p", want: "AccessDenied"},
		"missing value": {api: &fakeSSM{out: withValue(nil)}, name: "p", want: "has no value"},
		"nil output":    {api: &fakeSSM{}, name: "p", want: "has no value"},
		"blank value":   {api: &fakeSSM{out: withValue(aws.String("  "))}, name: "p", want: "is empty"},
		"blank name":    {api: &fakeSSM{}, name: " ", want: "required"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := New(tc.api)
			require.NoError(t, err)
			_, err = s.Get(context.Background(), tc.name)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewRejectsNilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	var s *Store
	_, err = s.Get(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}
