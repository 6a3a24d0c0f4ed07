package microsoft

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/microsoftgraph/msgraph-sdk-go/users"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
)

// messageSizeProperty is PR_MESSAGE_SIZE_EXTENDED, the total size of a folder's items.
const messageSizeProperty = "Long 0x0E08"

var folderSelect = []string{"id", "displayName", "totalItemCount", "childFolderCount"}

var folderExpand = []string{"singleValueExtendedProperties($filter=id eq '" + messageSizeProperty + "')"}

type userInfo struct {
	ID                string
	DisplayName       string
	UserPrincipalName string
	Mail              string
}

type folderInfo struct {
	ID          string
	DisplayName string
	ItemCount   int64
	SizeBytes   int64
	HasChildren bool
}

// graphAPI is the part of Microsoft Graph the directory reads.
type graphAPI interface {
	GetUser(ctx context.Context, identity string) (*userInfo, error)
	// ListFolders lists the children of parentID, or the top-level folders when it is empty.
	ListFolders(ctx context.Context, userID, parentID string) ([]folderInfo, error)
	MailboxUsageDetail(ctx context.Context, period string) ([]byte, error)
}

type sdkClient struct {
	graph *msgraphsdk.GraphServiceClient
}

func newSDKClient(cred azcore.TokenCredential) (*sdkClient, error) {
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{"https://graph.microsoft.com/.default"})
	if err != nil {
		return nil, fmt.Errorf("graph client initialization failed: %w", err)
	}
	return &sdkClient{graph: client}, nil
}

func (c *sdkClient) GetUser(ctx context.Context, identity string) (*userInfo, error) {
	reqConf := &users.UserItemRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.UserItemRequestBuilderGetQueryParameters{
			Select: []string{"id", "displayName", "userPrincipalName", "mail"},
		},
	}
	user, err := c.graph.Users().ByUserId(identity).Get(ctx, reqConf)
	if err != nil {
		return nil, handleGraphError(err)
	}
	return &userInfo{
		ID:                deref(user.GetId()),
		DisplayName:       deref(user.GetDisplayName()),
		UserPrincipalName: deref(user.GetUserPrincipalName()),
		Mail:              deref(user.GetMail()),
	}, nil
}

func (c *sdkClient) ListFolders(ctx context.Context, userID, parentID string) ([]folderInfo, error) {
	top := int32(250)
	var (
		resp models.MailFolderCollectionResponseable
		err  error
	)
	mailFolders := c.graph.Users().ByUserId(userID).MailFolders()
	if parentID == "" {
		resp, err = mailFolders.Get(ctx, &users.ItemMailFoldersRequestBuilderGetRequestConfiguration{
			QueryParameters: &users.ItemMailFoldersRequestBuilderGetQueryParameters{
				Select: folderSelect,
				Expand: folderExpand,
				Top:    &top,
			},
		})
	} else {
		resp, err = mailFolders.ByMailFolderId(parentID).ChildFolders().Get(ctx, &users.ItemMailFoldersItemChildFoldersRequestBuilderGetRequestConfiguration{
			QueryParameters: &users.ItemMailFoldersItemChildFoldersRequestBuilderGetQueryParameters{
				Select: folderSelect,
				Expand: folderExpand,
				Top:    &top,
			},
		})
	}
	if err != nil {
		return nil, handleGraphError(err)
	}

	pageIterator, err := msgraphcore.NewPageIterator[models.MailFolderable](resp, c.graph.GetAdapter(), models.CreateMailFolderCollectionResponseFromDiscriminatorValue)
	if err != nil {
		return nil, handleGraphError(err)
	}

	var folders []folderInfo
	err = pageIterator.Iterate(ctx, func(item models.MailFolderable) bool {
		folders = append(folders, toFolderInfo(item))
		return true
	})
	if err != nil {
		return nil, handleGraphError(err)
	}
	return folders, nil
}

func toFolderInfo(item models.MailFolderable) folderInfo {
	f := folderInfo{
		ID:          deref(item.GetId()),
		DisplayName: deref(item.GetDisplayName()),
	}
	if n := item.GetTotalItemCount(); n != nil {
		f.ItemCount = int64(*n)
	}
	if n := item.GetChildFolderCount(); n != nil {
		f.HasChildren = *n > 0
	}
	for _, p := range item.GetSingleValueExtendedProperties() {
		if p.GetId() == nil || p.GetValue() == nil {
			continue
		}
		if v, err := strconv.ParseInt(*p.GetValue(), 10, 64); err == nil {
			f.SizeBytes = v
		}
	}
	return f
}

func (c *sdkClient) MailboxUsageDetail(ctx context.Context, period string) ([]byte, error) {
	data, err := c.graph.Reports().GetMailboxUsageDetailWithPeriod(&period).Get(ctx, nil)
	if err != nil {
		return nil, handleGraphError(err)
	}
	return data, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// graphError is an OData error reduced to what callers branch on.
type graphError struct {
	Status  int
	Code    string
	Message string
}

func (e *graphError) Error() string {
	return fmt.Sprintf("graph API error: %s - %s", e.Code, e.Message)
}

func (e *graphError) NotFound() bool {
	switch e.Code {
	case "ErrorItemNotFound", "Request_ResourceNotFound", "ResourceNotFound", "MailboxNotEnabledForRESTAPI":
		return true
	}
	return e.Status == http.StatusNotFound
}

func (e *graphError) Throttled() bool {
	switch e.Code {
	case "TooManyRequests", "ApplicationThrottled", "throttled", "activityLimitReached", "serviceNotAvailable":
		return true
	}
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

// handleGraphError interprets OData errors from the Graph API for logging and retry logic.
func handleGraphError(err error) error {
	if err == nil {
		return nil
	}
	var odataErr *odataerrors.ODataError
	if !errors.As(err, &odataErr) {
		return err
	}
	ge := &graphError{Status: odataErr.ResponseStatusCode, Code: "unknown", Message: "no message"}
	if main := odataErr.GetErrorEscaped(); main != nil {
		if main.GetCode() != nil {
			ge.Code = *main.GetCode()
		}
		if main.GetMessage() != nil {
			ge.Message = *main.GetMessage()
		}
	}
	return ge
}

func isThrottled(err error) bool {
	var ge *graphError
	return errors.As(err, &ge) && ge.Throttled()
}

func isNotFound(err error) bool {
	var ge *graphError
	return errors.As(err, &ge) && ge.NotFound()
}
