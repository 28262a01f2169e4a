package luzidos

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Luzidos/Utils/retry"
)

// DefaultIdentityTable is the table mapping inbound addresses to user ids.
const DefaultIdentityTable = "emailToUserId"

// DynamoDBIdentityLookup resolves addresses against a DynamoDB table keyed by
// email with the user id stored in the "value" attribute.
type DynamoDBIdentityLookup struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoDBIdentityLookup creates a lookup on the given client. An empty
// table name selects DefaultIdentityTable.
func NewDynamoDBIdentityLookup(client *dynamodb.Client, table string) *DynamoDBIdentityLookup {
	if table == "" {
		table = DefaultIdentityTable
	}
	return &DynamoDBIdentityLookup{client: client, table: table}
}

func (l *DynamoDBIdentityLookup) UserIDForEmail(ctx context.Context, email string) (string, error) {
	var item map[string]types.AttributeValue
	err := retry.Do(ctx, func() error {
		out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &l.table,
			Key: map[string]types.AttributeValue{
				"email": &types.AttributeValueMemberS{Value: strings.ToLower(email)},
			},
		})
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		item = out.Item
		return nil
	})
	if err != nil {
		return "", WrapError(ErrorTypeTransientIO, err)
	}
	value, ok := item["value"].(*types.AttributeValueMemberS)
	if !ok || value.Value == "" {
		return "", NewAgentError(ErrorTypeUnknownSender,
			fmt.Sprintf("no user registered for address %q", email))
	}
	return value.Value, nil
}
