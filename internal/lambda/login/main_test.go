package main

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCognito struct {
	inputs           []*cognitoidentityprovider.InitiateAuthInput
	initiateAuthFunc func(*cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

func (m *mockCognito) InitiateAuth(_ context.Context, params *cognitoidentityprovider.InitiateAuthInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.initiateAuthFunc != nil {
		return m.initiateAuthFunc(params)
	}
	return &cognitoidentityprovider.InitiateAuthOutput{
		AuthenticationResult: &types.AuthenticationResultType{
			IdToken:      aws.String("id-token"),
			AccessToken:  aws.String("access-token"),
			RefreshToken: aws.String("refresh-token"),
			TokenType:    aws.String("Bearer"),
			ExpiresIn:    3600,
		},
	}, nil
}

func TestNewHandler(t *testing.T) {
	_, err := NewHandler(&mockCognito{}, "")
	assert.Error(t, err)

	handler, err := NewHandler(&mockCognito{}, "client1234")
	require.NoError(t, err)
	assert.Equal(t, "client1234", handler.clientID)
}

func TestHandle(t *testing.T) {
	cognito := &mockCognito{}
	handler, err := NewHandler(cognito, "client1234")
	require.NoError(t, err)

	resp, err := handler.Handle(context.Background(), Request{Username: "user0", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, &Response{
		IdToken:      "id-token",
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}, resp)

	require.Len(t, cognito.inputs, 1)
	input := cognito.inputs[0]
	assert.Equal(t, types.AuthFlowTypeUserPasswordAuth, input.AuthFlow)
	assert.Equal(t, "client1234", aws.ToString(input.ClientId))
	assert.Equal(t, map[string]string{"USERNAME": "user0", "PASSWORD": "secret"}, input.AuthParameters)
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		authFunc func(*cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error)
		calls    int
	}{
		{
			name:  "missing password",
			req:   Request{Username: "user0"},
			calls: 0,
		},
		{
			name: "rejected",
			req:  Request{Username: "user0", Password: "wrong"},
			authFunc: func(*cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error) {
				return nil, errors.New("NotAuthorizedException")
			},
			calls: 1,
		},
		{
			name: "challenge",
			req:  Request{Username: "user0", Password: "temp"},
			authFunc: func(*cognitoidentityprovider.InitiateAuthInput) (*cognitoidentityprovider.InitiateAuthOutput, error) {
				return &cognitoidentityprovider.InitiateAuthOutput{
					ChallengeName: types.ChallengeNameTypeNewPasswordRequired,
				}, nil
			},
			calls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cognito := &mockCognito{initiateAuthFunc: tt.authFunc}
			handler, err := NewHandler(cognito, "client1234")
			require.NoError(t, err)

			resp, err := handler.Handle(context.Background(), tt.req)
			assert.Error(t, err)
			assert.Nil(t, resp)
			assert.Len(t, cognito.inputs, tt.calls)
		})
	}
}
