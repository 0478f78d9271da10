package provider

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigateway/types"
	cognito "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cognitotypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/aws-sdk-go-v2/service/gamelift"
	gltypes "github.com/aws/aws-sdk-go-v2/service/gamelift/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/savaki/gamelift-backend/internal/config"
)

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code, Fault: smithy.FaultClient}
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Polling.InitialInterval = time.Millisecond
	cfg.Polling.MaxInterval = 2 * time.Millisecond
	return cfg.Resolve()
}

// recorder keeps the names of the calls made against a mock, in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) Count(name string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

type mockGameLift struct {
	recorder
	createBuildFunc   func(ctx context.Context, params *gamelift.CreateBuildInput) (*gamelift.CreateBuildOutput, error)
	describeBuildFunc func(ctx context.Context, params *gamelift.DescribeBuildInput) (*gamelift.DescribeBuildOutput, error)
	listBuildsFunc    func(ctx context.Context, params *gamelift.ListBuildsInput) (*gamelift.ListBuildsOutput, error)
	uploadCredsFunc   func(ctx context.Context, params *gamelift.RequestUploadCredentialsInput) (*gamelift.RequestUploadCredentialsOutput, error)
	deleteBuildFunc   func(ctx context.Context, params *gamelift.DeleteBuildInput) (*gamelift.DeleteBuildOutput, error)
	createFleetFunc   func(ctx context.Context, params *gamelift.CreateFleetInput) (*gamelift.CreateFleetOutput, error)
	describeFleetFunc func(ctx context.Context, params *gamelift.DescribeFleetAttributesInput) (*gamelift.DescribeFleetAttributesOutput, error)
	deleteFleetFunc   func(ctx context.Context, params *gamelift.DeleteFleetInput) (*gamelift.DeleteFleetOutput, error)
}

func uploadLocation() (*gltypes.AwsCredentials, *gltypes.S3Location) {
	return &gltypes.AwsCredentials{
			AccessKeyId:     aws.String("AKIA"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("token"),
		}, &gltypes.S3Location{
			Bucket: aws.String("gamelift-uploads"),
			Key:    aws.String("build-1234.zip"),
		}
}

func (m *mockGameLift) CreateBuild(ctx context.Context, params *gamelift.CreateBuildInput, _ ...func(*gamelift.Options)) (*gamelift.CreateBuildOutput, error) {
	m.record("CreateBuild")
	if m.createBuildFunc != nil {
		return m.createBuildFunc(ctx, params)
	}
	creds, location := uploadLocation()
	return &gamelift.CreateBuildOutput{
		Build:             &gltypes.Build{BuildId: aws.String("build-1234"), Name: params.Name, Status: gltypes.BuildStatusInitialized},
		UploadCredentials: creds,
		StorageLocation:   location,
	}, nil
}

func (m *mockGameLift) DescribeBuild(ctx context.Context, params *gamelift.DescribeBuildInput, _ ...func(*gamelift.Options)) (*gamelift.DescribeBuildOutput, error) {
	m.record("DescribeBuild")
	if m.describeBuildFunc != nil {
		return m.describeBuildFunc(ctx, params)
	}
	return &gamelift.DescribeBuildOutput{
		Build: &gltypes.Build{BuildId: params.BuildId, Status: gltypes.BuildStatusReady},
	}, nil
}

func (m *mockGameLift) ListBuilds(ctx context.Context, params *gamelift.ListBuildsInput, _ ...func(*gamelift.Options)) (*gamelift.ListBuildsOutput, error) {
	m.record("ListBuilds")
	if m.listBuildsFunc != nil {
		return m.listBuildsFunc(ctx, params)
	}
	return &gamelift.ListBuildsOutput{}, nil
}

func (m *mockGameLift) RequestUploadCredentials(ctx context.Context, params *gamelift.RequestUploadCredentialsInput, _ ...func(*gamelift.Options)) (*gamelift.RequestUploadCredentialsOutput, error) {
	m.record("RequestUploadCredentials")
	if m.uploadCredsFunc != nil {
		return m.uploadCredsFunc(ctx, params)
	}
	creds, location := uploadLocation()
	return &gamelift.RequestUploadCredentialsOutput{UploadCredentials: creds, StorageLocation: location}, nil
}

func (m *mockGameLift) DeleteBuild(ctx context.Context, params *gamelift.DeleteBuildInput, _ ...func(*gamelift.Options)) (*gamelift.DeleteBuildOutput, error) {
	m.record("DeleteBuild")
	if m.deleteBuildFunc != nil {
		return m.deleteBuildFunc(ctx, params)
	}
	return &gamelift.DeleteBuildOutput{}, nil
}

func (m *mockGameLift) CreateFleet(ctx context.Context, params *gamelift.CreateFleetInput, _ ...func(*gamelift.Options)) (*gamelift.CreateFleetOutput, error) {
	m.record("CreateFleet")
	if m.createFleetFunc != nil {
		return m.createFleetFunc(ctx, params)
	}
	return &gamelift.CreateFleetOutput{
		FleetAttributes: &gltypes.FleetAttributes{
			FleetId:  aws.String("fleet-1234"),
			FleetArn: aws.String("arn:aws:gamelift:us-west-2::fleet/fleet-1234"),
			Name:     params.Name,
			Status:   gltypes.FleetStatusNew,
		},
	}, nil
}

func (m *mockGameLift) DescribeFleetAttributes(ctx context.Context, params *gamelift.DescribeFleetAttributesInput, _ ...func(*gamelift.Options)) (*gamelift.DescribeFleetAttributesOutput, error) {
	m.record("DescribeFleetAttributes")
	if m.describeFleetFunc != nil {
		return m.describeFleetFunc(ctx, params)
	}
	if len(params.FleetIds) == 0 {
		return &gamelift.DescribeFleetAttributesOutput{}, nil
	}
	return &gamelift.DescribeFleetAttributesOutput{
		FleetAttributes: []gltypes.FleetAttributes{
			{
				FleetId:  aws.String(params.FleetIds[0]),
				FleetArn: aws.String("arn:aws:gamelift:us-west-2::fleet/" + params.FleetIds[0]),
				Status:   gltypes.FleetStatusActive,
			},
		},
	}, nil
}

func (m *mockGameLift) DeleteFleet(ctx context.Context, params *gamelift.DeleteFleetInput, _ ...func(*gamelift.Options)) (*gamelift.DeleteFleetOutput, error) {
	m.record("DeleteFleet")
	if m.deleteFleetFunc != nil {
		return m.deleteFleetFunc(ctx, params)
	}
	return &gamelift.DeleteFleetOutput{}, nil
}

type mockS3 struct {
	recorder
	region  string
	creds   aws.CredentialsProvider
	bucket  string
	key     string
	putFunc func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
}

func (m *mockS3) factory(region string, creds aws.CredentialsProvider) S3Client {
	m.region = region
	m.creds = creds
	return m
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.record("PutObject")
	m.bucket = aws.ToString(params.Bucket)
	m.key = aws.ToString(params.Key)
	if m.putFunc != nil {
		return m.putFunc(ctx, params)
	}
	return &s3.PutObjectOutput{}, nil
}

type mockCognito struct {
	recorder
	createPoolFunc     func(ctx context.Context, params *cognito.CreateUserPoolInput) (*cognito.CreateUserPoolOutput, error)
	describePoolFunc   func(ctx context.Context, params *cognito.DescribeUserPoolInput) (*cognito.DescribeUserPoolOutput, error)
	listPoolsFunc      func(ctx context.Context, params *cognito.ListUserPoolsInput) (*cognito.ListUserPoolsOutput, error)
	deletePoolFunc     func(ctx context.Context, params *cognito.DeleteUserPoolInput) (*cognito.DeleteUserPoolOutput, error)
	listClientsFunc    func(ctx context.Context, params *cognito.ListUserPoolClientsInput) (*cognito.ListUserPoolClientsOutput, error)
	adminCreateFunc    func(ctx context.Context, params *cognito.AdminCreateUserInput) (*cognito.AdminCreateUserOutput, error)
	setPasswordInputs  []*cognito.AdminSetUserPasswordInput
	createClientInputs []*cognito.CreateUserPoolClientInput
}

func (m *mockCognito) CreateUserPool(ctx context.Context, params *cognito.CreateUserPoolInput, _ ...func(*cognito.Options)) (*cognito.CreateUserPoolOutput, error) {
	m.record("CreateUserPool")
	if m.createPoolFunc != nil {
		return m.createPoolFunc(ctx, params)
	}
	return &cognito.CreateUserPoolOutput{
		UserPool: &cognitotypes.UserPoolType{
			Id:   aws.String("us-west-2_pool"),
			Arn:  aws.String("arn:aws:cognito-idp:us-west-2:123456789012:userpool/us-west-2_pool"),
			Name: params.PoolName,
		},
	}, nil
}

func (m *mockCognito) DescribeUserPool(ctx context.Context, params *cognito.DescribeUserPoolInput, _ ...func(*cognito.Options)) (*cognito.DescribeUserPoolOutput, error) {
	m.record("DescribeUserPool")
	if m.describePoolFunc != nil {
		return m.describePoolFunc(ctx, params)
	}
	return nil, apiError("ResourceNotFoundException")
}

func (m *mockCognito) ListUserPools(ctx context.Context, params *cognito.ListUserPoolsInput, _ ...func(*cognito.Options)) (*cognito.ListUserPoolsOutput, error) {
	m.record("ListUserPools")
	if m.listPoolsFunc != nil {
		return m.listPoolsFunc(ctx, params)
	}
	return &cognito.ListUserPoolsOutput{}, nil
}

func (m *mockCognito) DeleteUserPool(ctx context.Context, params *cognito.DeleteUserPoolInput, _ ...func(*cognito.Options)) (*cognito.DeleteUserPoolOutput, error) {
	m.record("DeleteUserPool")
	if m.deletePoolFunc != nil {
		return m.deletePoolFunc(ctx, params)
	}
	return &cognito.DeleteUserPoolOutput{}, nil
}

func (m *mockCognito) CreateUserPoolClient(_ context.Context, params *cognito.CreateUserPoolClientInput, _ ...func(*cognito.Options)) (*cognito.CreateUserPoolClientOutput, error) {
	m.record("CreateUserPoolClient")
	m.createClientInputs = append(m.createClientInputs, params)
	return &cognito.CreateUserPoolClientOutput{
		UserPoolClient: &cognitotypes.UserPoolClientType{ClientId: aws.String("client-1234"), ClientName: params.ClientName},
	}, nil
}

func (m *mockCognito) ListUserPoolClients(ctx context.Context, params *cognito.ListUserPoolClientsInput, _ ...func(*cognito.Options)) (*cognito.ListUserPoolClientsOutput, error) {
	m.record("ListUserPoolClients")
	if m.listClientsFunc != nil {
		return m.listClientsFunc(ctx, params)
	}
	return &cognito.ListUserPoolClientsOutput{}, nil
}

func (m *mockCognito) CreateUserPoolDomain(context.Context, *cognito.CreateUserPoolDomainInput, ...func(*cognito.Options)) (*cognito.CreateUserPoolDomainOutput, error) {
	m.record("CreateUserPoolDomain")
	return &cognito.CreateUserPoolDomainOutput{}, nil
}

func (m *mockCognito) DeleteUserPoolDomain(context.Context, *cognito.DeleteUserPoolDomainInput, ...func(*cognito.Options)) (*cognito.DeleteUserPoolDomainOutput, error) {
	m.record("DeleteUserPoolDomain")
	return &cognito.DeleteUserPoolDomainOutput{}, nil
}

func (m *mockCognito) AdminCreateUser(ctx context.Context, params *cognito.AdminCreateUserInput, _ ...func(*cognito.Options)) (*cognito.AdminCreateUserOutput, error) {
	m.record("AdminCreateUser")
	if m.adminCreateFunc != nil {
		return m.adminCreateFunc(ctx, params)
	}
	return &cognito.AdminCreateUserOutput{}, nil
}

func (m *mockCognito) AdminSetUserPassword(_ context.Context, params *cognito.AdminSetUserPasswordInput, _ ...func(*cognito.Options)) (*cognito.AdminSetUserPasswordOutput, error) {
	m.record("AdminSetUserPassword")
	m.setPasswordInputs = append(m.setPasswordInputs, params)
	return &cognito.AdminSetUserPasswordOutput{}, nil
}

type mockLambda struct {
	recorder
	createFunc        func(ctx context.Context, params *lambda.CreateFunctionInput) (*lambda.CreateFunctionOutput, error)
	getFunc           func(ctx context.Context, params *lambda.GetFunctionInput) (*lambda.GetFunctionOutput, error)
	deleteFunc        func(ctx context.Context, params *lambda.DeleteFunctionInput) (*lambda.DeleteFunctionOutput, error)
	removeFunc        func(ctx context.Context, params *lambda.RemovePermissionInput) (*lambda.RemovePermissionOutput, error)
	created           map[string]*lambda.CreateFunctionInput
	permissionInputs  []*lambda.AddPermissionInput
	removedStatements []string
}

func (m *mockLambda) CreateFunction(ctx context.Context, params *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	m.record("CreateFunction")
	if m.createFunc != nil {
		if out, err := m.createFunc(ctx, params); out != nil || err != nil {
			return out, err
		}
	}
	if m.created == nil {
		m.created = map[string]*lambda.CreateFunctionInput{}
	}
	m.created[aws.ToString(params.FunctionName)] = params
	return &lambda.CreateFunctionOutput{
		FunctionArn: aws.String("arn:aws:lambda:us-west-2:123456789012:function:" + aws.ToString(params.FunctionName)),
		State:       lambdatypes.StatePending,
	}, nil
}

func (m *mockLambda) GetFunction(ctx context.Context, params *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	m.record("GetFunction")
	if m.getFunc != nil {
		return m.getFunc(ctx, params)
	}
	name := aws.ToString(params.FunctionName)
	if _, ok := m.created[name]; !ok {
		return nil, apiError("ResourceNotFoundException")
	}
	return &lambda.GetFunctionOutput{
		Configuration: &lambdatypes.FunctionConfiguration{
			FunctionName: aws.String(name),
			FunctionArn:  aws.String("arn:aws:lambda:us-west-2:123456789012:function:" + name),
			State:        lambdatypes.StateActive,
		},
	}, nil
}

func (m *mockLambda) UpdateFunctionConfiguration(context.Context, *lambda.UpdateFunctionConfigurationInput, ...func(*lambda.Options)) (*lambda.UpdateFunctionConfigurationOutput, error) {
	m.record("UpdateFunctionConfiguration")
	return &lambda.UpdateFunctionConfigurationOutput{}, nil
}

func (m *mockLambda) DeleteFunction(ctx context.Context, params *lambda.DeleteFunctionInput, _ ...func(*lambda.Options)) (*lambda.DeleteFunctionOutput, error) {
	m.record("DeleteFunction")
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, params)
	}
	delete(m.created, aws.ToString(params.FunctionName))
	return &lambda.DeleteFunctionOutput{}, nil
}

func (m *mockLambda) AddPermission(_ context.Context, params *lambda.AddPermissionInput, _ ...func(*lambda.Options)) (*lambda.AddPermissionOutput, error) {
	m.record("AddPermission")
	m.permissionInputs = append(m.permissionInputs, params)
	return &lambda.AddPermissionOutput{}, nil
}

func (m *mockLambda) RemovePermission(ctx context.Context, params *lambda.RemovePermissionInput, _ ...func(*lambda.Options)) (*lambda.RemovePermissionOutput, error) {
	m.record("RemovePermission")
	m.removedStatements = append(m.removedStatements, aws.ToString(params.StatementId))
	if m.removeFunc != nil {
		return m.removeFunc(ctx, params)
	}
	return &lambda.RemovePermissionOutput{}, nil
}

type mockIAM struct {
	recorder
	roles         map[string]bool
	policies      map[string]string
	userPolicies  []string
	groups        map[string][]string
	deleteRoleErr error
}

func (m *mockIAM) GetRole(_ context.Context, params *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	m.record("GetRole")
	name := aws.ToString(params.RoleName)
	if !m.roles[name] {
		return nil, apiError("NoSuchEntity")
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: params.RoleName, Arn: aws.String("arn:aws:iam::123456789012:role/" + name)}}, nil
}

func (m *mockIAM) CreateRole(_ context.Context, params *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	m.record("CreateRole")
	if m.roles == nil {
		m.roles = map[string]bool{}
	}
	name := aws.ToString(params.RoleName)
	m.roles[name] = true
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{RoleName: params.RoleName, Arn: aws.String("arn:aws:iam::123456789012:role/" + name)}}, nil
}

func (m *mockIAM) PutRolePolicy(_ context.Context, params *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	m.record("PutRolePolicy")
	if m.policies == nil {
		m.policies = map[string]string{}
	}
	m.policies[aws.ToString(params.RoleName)] = aws.ToString(params.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func (m *mockIAM) DeleteRolePolicy(_ context.Context, params *iam.DeleteRolePolicyInput, _ ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	m.record("DeleteRolePolicy")
	delete(m.policies, aws.ToString(params.RoleName))
	return &iam.DeleteRolePolicyOutput{}, nil
}

func (m *mockIAM) DeleteRole(_ context.Context, params *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	m.record("DeleteRole")
	if m.deleteRoleErr != nil {
		return nil, m.deleteRoleErr
	}
	delete(m.roles, aws.ToString(params.RoleName))
	return &iam.DeleteRoleOutput{}, nil
}

func attached(names []string) []iamtypes.AttachedPolicy {
	var out []iamtypes.AttachedPolicy
	for _, name := range names {
		out = append(out, iamtypes.AttachedPolicy{PolicyName: aws.String(name)})
	}
	return out
}

func (m *mockIAM) ListAttachedUserPolicies(context.Context, *iam.ListAttachedUserPoliciesInput, ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error) {
	m.record("ListAttachedUserPolicies")
	return &iam.ListAttachedUserPoliciesOutput{AttachedPolicies: attached(m.userPolicies)}, nil
}

func (m *mockIAM) ListGroupsForUser(context.Context, *iam.ListGroupsForUserInput, ...func(*iam.Options)) (*iam.ListGroupsForUserOutput, error) {
	m.record("ListGroupsForUser")
	var groups []iamtypes.Group
	for name := range m.groups {
		groups = append(groups, iamtypes.Group{GroupName: aws.String(name)})
	}
	return &iam.ListGroupsForUserOutput{Groups: groups}, nil
}

func (m *mockIAM) ListAttachedGroupPolicies(_ context.Context, params *iam.ListAttachedGroupPoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedGroupPoliciesOutput, error) {
	m.record("ListAttachedGroupPolicies")
	return &iam.ListAttachedGroupPoliciesOutput{AttachedPolicies: attached(m.groups[aws.ToString(params.GroupName)])}, nil
}

type mockAPIGateway struct {
	recorder
	existing         map[string]string
	createFunc       func(ctx context.Context, params *apigateway.CreateRestApiInput) (*apigateway.CreateRestApiOutput, error)
	deleteFunc       func(ctx context.Context, params *apigateway.DeleteRestApiInput) (*apigateway.DeleteRestApiOutput, error)
	deleted          []string
	methods          []*apigateway.PutMethodInput
	integrations     []*apigateway.PutIntegrationInput
	authorizerInputs []*apigateway.CreateAuthorizerInput
	resources        int
}

func (m *mockAPIGateway) CreateRestApi(ctx context.Context, params *apigateway.CreateRestApiInput, _ ...func(*apigateway.Options)) (*apigateway.CreateRestApiOutput, error) {
	m.record("CreateRestApi")
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	return &apigateway.CreateRestApiOutput{Id: aws.String("api1234"), Name: params.Name}, nil
}

func (m *mockAPIGateway) GetRestApis(context.Context, *apigateway.GetRestApisInput, ...func(*apigateway.Options)) (*apigateway.GetRestApisOutput, error) {
	m.record("GetRestApis")
	out := &apigateway.GetRestApisOutput{}
	for id, name := range m.existing {
		out.Items = append(out.Items, apigwtypes.RestApi{Id: aws.String(id), Name: aws.String(name)})
	}
	return out, nil
}

func (m *mockAPIGateway) DeleteRestApi(ctx context.Context, params *apigateway.DeleteRestApiInput, _ ...func(*apigateway.Options)) (*apigateway.DeleteRestApiOutput, error) {
	m.record("DeleteRestApi")
	if m.deleteFunc != nil {
		if out, err := m.deleteFunc(ctx, params); err != nil {
			return out, err
		}
	}
	id := aws.ToString(params.RestApiId)
	m.deleted = append(m.deleted, id)
	delete(m.existing, id)
	return &apigateway.DeleteRestApiOutput{}, nil
}

func (m *mockAPIGateway) CreateAuthorizer(_ context.Context, params *apigateway.CreateAuthorizerInput, _ ...func(*apigateway.Options)) (*apigateway.CreateAuthorizerOutput, error) {
	m.record("CreateAuthorizer")
	m.authorizerInputs = append(m.authorizerInputs, params)
	return &apigateway.CreateAuthorizerOutput{Id: aws.String("auth1234")}, nil
}

func (m *mockAPIGateway) GetResources(context.Context, *apigateway.GetResourcesInput, ...func(*apigateway.Options)) (*apigateway.GetResourcesOutput, error) {
	m.record("GetResources")
	return &apigateway.GetResourcesOutput{Items: []apigwtypes.Resource{{Id: aws.String("root1234"), Path: aws.String("/")}}}, nil
}

func (m *mockAPIGateway) CreateResource(_ context.Context, params *apigateway.CreateResourceInput, _ ...func(*apigateway.Options)) (*apigateway.CreateResourceOutput, error) {
	m.record("CreateResource")
	m.resources++
	return &apigateway.CreateResourceOutput{Id: aws.String("res-" + aws.ToString(params.PathPart)), PathPart: params.PathPart}, nil
}

func (m *mockAPIGateway) PutMethod(_ context.Context, params *apigateway.PutMethodInput, _ ...func(*apigateway.Options)) (*apigateway.PutMethodOutput, error) {
	m.record("PutMethod")
	m.methods = append(m.methods, params)
	return &apigateway.PutMethodOutput{}, nil
}

func (m *mockAPIGateway) PutMethodResponse(context.Context, *apigateway.PutMethodResponseInput, ...func(*apigateway.Options)) (*apigateway.PutMethodResponseOutput, error) {
	m.record("PutMethodResponse")
	return &apigateway.PutMethodResponseOutput{}, nil
}

func (m *mockAPIGateway) PutIntegration(_ context.Context, params *apigateway.PutIntegrationInput, _ ...func(*apigateway.Options)) (*apigateway.PutIntegrationOutput, error) {
	m.record("PutIntegration")
	m.integrations = append(m.integrations, params)
	return &apigateway.PutIntegrationOutput{}, nil
}

func (m *mockAPIGateway) PutIntegrationResponse(context.Context, *apigateway.PutIntegrationResponseInput, ...func(*apigateway.Options)) (*apigateway.PutIntegrationResponseOutput, error) {
	m.record("PutIntegrationResponse")
	return &apigateway.PutIntegrationResponseOutput{}, nil
}

func (m *mockAPIGateway) CreateDeployment(context.Context, *apigateway.CreateDeploymentInput, ...func(*apigateway.Options)) (*apigateway.CreateDeploymentOutput, error) {
	m.record("CreateDeployment")
	return &apigateway.CreateDeploymentOutput{Id: aws.String("deploy1234")}, nil
}

type mockSTS struct {
	arn string
}

func (m *mockSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	arn := m.arn
	if arn == "" {
		arn = "arn:aws:iam::123456789012:user/deployer"
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012"), Arn: aws.String(arn)}, nil
}
