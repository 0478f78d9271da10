package provider

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/gamelift"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/savaki/gamelift-backend/internal/resource"
)

// Clients bundles the service clients the drivers need.
type Clients struct {
	GameLift   GameLiftClient
	S3         S3Factory
	Cognito    CognitoClient
	Lambda     LambdaClient
	IAM        IAMClient
	APIGateway APIGatewayClient
	STS        STSClient
}

// NewClients builds every service client from a shared aws.Config.
func NewClients(cfg aws.Config) Clients {
	return Clients{
		GameLift:   gamelift.NewFromConfig(cfg),
		S3:         NewS3Client,
		Cognito:    cognito.NewFromConfig(cfg),
		Lambda:     lambda.NewFromConfig(cfg),
		IAM:        iam.NewFromConfig(cfg),
		APIGateway: apigateway.NewFromConfig(cfg),
		STS:        sts.NewFromConfig(cfg),
	}
}

// New wires one driver per kind.
func New(c Clients) *Registry {
	return NewRegistry(map[resource.Kind]Driver{
		resource.Build:                NewBuildDriver(c.GameLift, c.S3),
		resource.Fleet:                NewFleetDriver(c.GameLift),
		resource.UserPool:             NewUserPoolDriver(c.Cognito),
		resource.LoginFunction:        NewFunctionDriver(resource.LoginFunction, c.Lambda, c.IAM),
		resource.StartSessionFunction: NewFunctionDriver(resource.StartSessionFunction, c.Lambda, c.IAM),
		resource.RestApi:              NewRestApiDriver(c.APIGateway, c.Lambda, c.STS),
	})
}
