package provider

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigateway/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
	"github.com/segmentio/ksuid"
)

const (
	authorizationNone    = "NONE"
	authorizationCognito = "COGNITO_USER_POOLS"
	identitySource       = "method.request.header.Authorization"
	deleteApiTimeout     = 3 * time.Minute
)

// sessionTemplate maps the authenticated caller onto the start-session event.
const sessionTemplate = `{"playerId": "$context.authorizer.claims['cognito:username']"}`

// RestApiDriver publishes the login and start-session functions behind a REST
// API guarded by a Cognito authorizer.
type RestApiDriver struct {
	api    APIGatewayClient
	lambda LambdaClient
	sts    STSClient
}

func NewRestApiDriver(api APIGatewayClient, lambdaClient LambdaClient, stsClient STSClient) *RestApiDriver {
	return &RestApiDriver{
		api:    api,
		lambda: lambdaClient,
		sts:    stsClient,
	}
}

type route struct {
	kind       resource.Kind
	path       string
	method     string
	authorizer string
	templates  map[string]string
	permission string
}

// InvokeURL returns the base URL of a deployed stage.
func InvokeURL(apiID, region, stage string) string {
	return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s", apiID, region, stage)
}

func (d *RestApiDriver) Create(ctx context.Context, in Input) (map[string]string, error) {
	cfg := in.Config
	logger := zerolog.Ctx(ctx).With().Str("rest_api", cfg.RestApi.Name).Logger()

	poolArn, err := in.prerequisite(resource.UserPool, resource.IDUserPoolArn)
	if err != nil {
		return nil, err
	}
	loginArn, err := in.prerequisite(resource.LoginFunction, resource.IDFunctionArn)
	if err != nil {
		return nil, err
	}
	sessionArn, err := in.prerequisite(resource.StartSessionFunction, resource.IDFunctionArn)
	if err != nil {
		return nil, err
	}

	identity, err := d.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}
	account := aws.ToString(identity.Account)

	// a partially configured api left by an interrupted run is replaced
	if err := d.Delete(ctx, in); err != nil {
		return nil, err
	}

	created, err := d.api.CreateRestApi(ctx, &apigateway.CreateRestApiInput{
		Name:        aws.String(cfg.RestApi.Name),
		Description: aws.String("game backend for " + cfg.Namespace),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rest api %s: %w", cfg.RestApi.Name, err)
	}
	apiID := aws.ToString(created.Id)
	logger.Info().Str("rest_api_id", apiID).Msg("created rest api")

	ids := map[string]string{
		resource.IDRestApiID: apiID,
		resource.IDStageName: cfg.RestApi.StageName,
	}

	authorizer, err := d.api.CreateAuthorizer(ctx, &apigateway.CreateAuthorizerInput{
		RestApiId:      aws.String(apiID),
		Name:           aws.String(cfg.RestApi.AuthorizerName),
		Type:           types.AuthorizerTypeCognitoUserPools,
		ProviderARNs:   []string{poolArn},
		IdentitySource: aws.String(identitySource),
	})
	if err != nil {
		return ids, fmt.Errorf("failed to create authorizer %s: %w", cfg.RestApi.AuthorizerName, err)
	}
	authorizerID := aws.ToString(authorizer.Id)
	ids[resource.IDAuthorizerID] = authorizerID

	rootID, err := d.root(ctx, apiID)
	if err != nil {
		return ids, err
	}

	routes := []route{
		{
			kind:       resource.LoginFunction,
			path:       cfg.RestApi.LoginPath,
			method:     http.MethodPost,
			permission: resource.IDLoginPermission,
		},
		{
			kind:       resource.StartSessionFunction,
			path:       cfg.RestApi.StartSessionPath,
			method:     http.MethodGet,
			authorizer: authorizerID,
			templates:  map[string]string{"application/json": sessionTemplate},
			permission: resource.IDSessionPermission,
		},
	}
	functionArns := map[resource.Kind]string{
		resource.LoginFunction:        loginArn,
		resource.StartSessionFunction: sessionArn,
	}

	for _, r := range routes {
		statementID, err := d.addRoute(ctx, cfg.Region, account, apiID, rootID, functionArns[r.kind], r)
		if err != nil {
			return ids, err
		}
		ids[r.permission] = statementID
	}

	deployment, err := d.api.CreateDeployment(ctx, &apigateway.CreateDeploymentInput{
		RestApiId: aws.String(apiID),
		StageName: aws.String(cfg.RestApi.StageName),
	})
	if err != nil {
		return ids, fmt.Errorf("failed to deploy rest api %s: %w", apiID, err)
	}
	ids[resource.IDDeploymentID] = aws.ToString(deployment.Id)

	invokeURL := InvokeURL(apiID, cfg.Region, cfg.RestApi.StageName)
	ids[resource.IDInvokeURL] = invokeURL

	logger.Info().Str("invoke_url", invokeURL).Msg("deployed rest api")
	logger.Info().Msgf(`to login try: curl -X POST -d '{"username":"%s0", "password":"..."}' %s/%s`, cfg.UserPool.TestUserPrefix, invokeURL, cfg.RestApi.LoginPath)
	logger.Info().Msgf(`to start a session use the IdToken from login: curl -X GET -H "Authorization: Bearer [IdToken]" %s/%s`, invokeURL, cfg.RestApi.StartSessionPath)

	return ids, nil
}

func (d *RestApiDriver) root(ctx context.Context, apiID string) (string, error) {
	var position *string
	for {
		out, err := d.api.GetResources(ctx, &apigateway.GetResourcesInput{
			RestApiId: aws.String(apiID),
			Position:  position,
		})
		if err != nil {
			return "", fmt.Errorf("failed to get resources of rest api %s: %w", apiID, err)
		}
		for _, item := range out.Items {
			if aws.ToString(item.Path) == "/" {
				return aws.ToString(item.Id), nil
			}
		}
		if aws.ToString(out.Position) == "" {
			return "", fmt.Errorf("%w: rest api %s has no root resource", errors.ErrNotFound, apiID)
		}
		position = out.Position
	}
}

// addRoute binds method on /path to functionArn and grants API Gateway
// permission to invoke it. It returns the permission statement id.
func (d *RestApiDriver) addRoute(ctx context.Context, region, account, apiID, rootID, functionArn string, r route) (string, error) {
	created, err := d.api.CreateResource(ctx, &apigateway.CreateResourceInput{
		RestApiId: aws.String(apiID),
		ParentId:  aws.String(rootID),
		PathPart:  aws.String(r.path),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create resource /%s: %w", r.path, err)
	}
	resourceID := aws.ToString(created.Id)

	method := &apigateway.PutMethodInput{
		RestApiId:         aws.String(apiID),
		ResourceId:        aws.String(resourceID),
		HttpMethod:        aws.String(r.method),
		AuthorizationType: aws.String(authorizationNone),
	}
	if r.authorizer != "" {
		method.AuthorizationType = aws.String(authorizationCognito)
		method.AuthorizerId = aws.String(r.authorizer)
	}
	if _, err := d.api.PutMethod(ctx, method); err != nil {
		return "", fmt.Errorf("failed to put method %s /%s: %w", r.method, r.path, err)
	}

	// lambda integrations are always invoked with POST
	uri := fmt.Sprintf("arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/%s/invocations", region, functionArn)
	_, err = d.api.PutIntegration(ctx, &apigateway.PutIntegrationInput{
		RestApiId:             aws.String(apiID),
		ResourceId:            aws.String(resourceID),
		HttpMethod:            aws.String(r.method),
		Type:                  types.IntegrationTypeAws,
		IntegrationHttpMethod: aws.String(http.MethodPost),
		Uri:                   aws.String(uri),
		RequestTemplates:      r.templates,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put integration %s /%s: %w", r.method, r.path, err)
	}

	statementID := "gamelift-backend-" + ksuid.New().String()
	_, err = d.lambda.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(functionArn),
		StatementId:  aws.String(statementID),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String("apigateway.amazonaws.com"),
		SourceArn:    aws.String(fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/*/%s/%s", region, account, apiID, r.method, r.path)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to grant invoke on %s: %w", functionArn, err)
	}

	_, err = d.api.PutMethodResponse(ctx, &apigateway.PutMethodResponseInput{
		RestApiId:  aws.String(apiID),
		ResourceId: aws.String(resourceID),
		HttpMethod: aws.String(r.method),
		StatusCode: aws.String("200"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put method response %s /%s: %w", r.method, r.path, err)
	}

	_, err = d.api.PutIntegrationResponse(ctx, &apigateway.PutIntegrationResponseInput{
		RestApiId:        aws.String(apiID),
		ResourceId:       aws.String(resourceID),
		HttpMethod:       aws.String(r.method),
		StatusCode:       aws.String("200"),
		SelectionPattern: aws.String(".*"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put integration response %s /%s: %w", r.method, r.path, err)
	}

	zerolog.Ctx(ctx).Info().Str("method", r.method).Str("path", "/"+r.path).Msg("added route")
	return statementID, nil
}

// find returns the ids of every api named name.
func (d *RestApiDriver) find(ctx context.Context, name string) ([]string, error) {
	var (
		ids      []string
		position *string
	)
	for {
		out, err := d.api.GetRestApis(ctx, &apigateway.GetRestApisInput{
			Limit:    aws.Int32(500),
			Position: position,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list rest apis: %w", err)
		}
		for _, item := range out.Items {
			if aws.ToString(item.Name) == name {
				ids = append(ids, aws.ToString(item.Id))
			}
		}
		if aws.ToString(out.Position) == "" {
			return ids, nil
		}
		position = out.Position
	}
}

// Delete revokes the recorded invoke permissions and removes every api
// carrying the configured name.
func (d *RestApiDriver) Delete(ctx context.Context, in Input) error {
	cfg := in.Config

	for _, p := range []struct {
		kind resource.Kind
		key  string
	}{
		{kind: resource.LoginFunction, key: resource.IDLoginPermission},
		{kind: resource.StartSessionFunction, key: resource.IDSessionPermission},
	} {
		statementID := in.Record.ID(p.key)
		if statementID == "" {
			continue
		}
		fn, _ := cfg.Function(p.kind)
		_, err := d.lambda.RemovePermission(ctx, &lambda.RemovePermissionInput{
			FunctionName: aws.String(fn.Name),
			StatementId:  aws.String(statementID),
		})
		if err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("failed to remove permission %s from %s: %w", statementID, fn.Name, err)
		}
	}

	ids, err := d.find(ctx, cfg.RestApi.Name)
	if err != nil {
		return err
	}
	if id := in.Record.ID(resource.IDRestApiID); id != "" && !slices.Contains(ids, id) {
		ids = append(ids, id)
	}

	// DeleteRestApi is rate limited to one call every 30 seconds per account
	b := backoff(cfg, deleteApiTimeout)
	for _, id := range ids {
		err := Retry(ctx, b, errors.IsThrottled, func(ctx context.Context) error {
			_, err := d.api.DeleteRestApi(ctx, &apigateway.DeleteRestApiInput{RestApiId: aws.String(id)})
			return err
		})
		if err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("failed to delete rest api %s: %w", id, err)
		}
		zerolog.Ctx(ctx).Info().Str("rest_api_id", id).Msg("deleted rest api")
	}
	return nil
}
