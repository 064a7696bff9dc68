package gmail

import (
	"errors"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/lu-zhengda/mailsession/internal/gateway"
)

// classify maps Gmail client errors onto the gateway error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		re := &gateway.RemoteError{Op: op, StatusCode: gerr.Code, Message: gerr.Message}
		if len(gerr.Errors) > 0 {
			re.Code = gerr.Errors[0].Reason
			if re.Message == "" {
				re.Message = gerr.Errors[0].Message
			}
		}
		return re
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		re := &gateway.RemoteError{Op: op, Code: rerr.ErrorCode, Message: rerr.ErrorDescription}
		if rerr.Response != nil {
			re.StatusCode = rerr.Response.StatusCode
		}
		if re.Message == "" {
			re.Message = "token refresh rejected"
		}
		return re
	}

	return gateway.Transport(op, err)
}
