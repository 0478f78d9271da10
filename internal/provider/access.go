package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const administratorAccess = "AdministratorAccess"

// AccessReport describes the caller and the managed policies it holds.
type AccessReport struct {
	Account       string   `json:"account"`
	Arn           string   `json:"arn"`
	UserName      string   `json:"user_name,omitempty"`
	Policies      []string `json:"policies,omitempty"`
	Administrator bool     `json:"administrator"`
}

// AccessChecker verifies the caller can create every resource kind.
type AccessChecker struct {
	iam IAMClient
	sts STSClient
}

func NewAccessChecker(iamClient IAMClient, stsClient STSClient) *AccessChecker {
	return &AccessChecker{iam: iamClient, sts: stsClient}
}

// userName extracts the user from arn:aws:iam::123456789012:user/path/name.
func userName(arn string) string {
	_, resource, ok := strings.Cut(arn, ":user/")
	if !ok {
		return ""
	}
	if idx := strings.LastIndex(resource, "/"); idx >= 0 {
		return resource[idx+1:]
	}
	return resource
}

// Check lists the policies attached to the calling user directly and through
// its groups. Callers that are not IAM users are reported without policies.
func (c *AccessChecker) Check(ctx context.Context) (*AccessReport, error) {
	identity, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get caller identity: %w", err)
	}

	report := &AccessReport{
		Account:  aws.ToString(identity.Account),
		Arn:      aws.ToString(identity.Arn),
		UserName: userName(aws.ToString(identity.Arn)),
	}
	if report.UserName == "" {
		return report, nil
	}

	policies := map[string]bool{}

	attached, err := c.iam.ListAttachedUserPolicies(ctx, &iam.ListAttachedUserPoliciesInput{
		UserName: aws.String(report.UserName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list policies of %s: %w", report.UserName, err)
	}
	for _, p := range attached.AttachedPolicies {
		policies[aws.ToString(p.PolicyName)] = true
	}

	groups, err := c.iam.ListGroupsForUser(ctx, &iam.ListGroupsForUserInput{
		UserName: aws.String(report.UserName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list groups of %s: %w", report.UserName, err)
	}
	for _, g := range groups.Groups {
		out, err := c.iam.ListAttachedGroupPolicies(ctx, &iam.ListAttachedGroupPoliciesInput{
			GroupName: g.GroupName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list policies of group %s: %w", aws.ToString(g.GroupName), err)
		}
		for _, p := range out.AttachedPolicies {
			policies[aws.ToString(p.PolicyName)] = true
		}
	}

	for name := range policies {
		report.Policies = append(report.Policies, name)
	}
	sort.Strings(report.Policies)
	report.Administrator = policies[administratorAccess]
	return report, nil
}
