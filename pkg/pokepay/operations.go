package pokepay

// Operation names
const (
	OpSendEcho                  = "SendEcho"
	OpGetAccount                = "GetAccount"
	OpUpdateAccount             = "UpdateAccount"
	OpCreateCustomerAccount     = "CreateCustomerAccount"
	OpGetCustomerAccounts       = "GetCustomerAccounts"
	OpCreateUserAccount         = "CreateUserAccount"
	OpCreateBank                = "CreateBank"
	OpCreateBill                = "CreateBill"
	OpCreateExternalTransaction = "CreateExternalTransaction"
	OpCreateTransaction         = "CreateTransaction"
	OpCreatePaymentTransaction  = "CreatePaymentTransaction"
	OpGetTransaction            = "GetTransaction"
	OpGetTransactionByRequestID = "GetTransactionByRequestID"
	OpListTransactionsV2        = "ListTransactionsV2"
	OpGetBulkTransaction        = "GetBulkTransaction"
	OpGetCampaign               = "GetCampaign"
	OpGetCashtray               = "GetCashtray"
	OpUpdateCashtray            = "UpdateCashtray"
	OpCancelCashtray            = "CancelCashtray"
	OpGetCpmToken               = "GetCpmToken"
	OpGetShop                   = "GetShop"
	OpListShops                 = "ListShops"
	OpUpdateCheck               = "UpdateCheck"
	OpCreateWebhook             = "CreateWebhook"
	OpDeleteWebhook             = "DeleteWebhook"
)

var operationTable = buildOperationTable(
	Operation{Name: OpSendEcho, PathTemplate: "/echo", Method: MethodPost, Required: []string{"message"}, Shape: ShapeEcho},

	Operation{Name: OpGetAccount, PathTemplate: "/accounts/{account_id}", Method: MethodGet, Shape: ShapeAccountDetail},
	Operation{Name: OpUpdateAccount, PathTemplate: "/accounts/{account_id}", Method: MethodPatch, Shape: ShapeAccountDetail},
	Operation{Name: OpCreateCustomerAccount, PathTemplate: "/accounts/customers", Method: MethodPost, Required: []string{"private_money_id"}, Shape: ShapeAccountWithUser},
	Operation{Name: OpGetCustomerAccounts, PathTemplate: "/accounts/customers", Method: MethodGet, Required: []string{"private_money_id"}, Shape: ShapePaginated},
	Operation{Name: OpCreateUserAccount, PathTemplate: "/users/{user_id}/accounts", Method: MethodPost, Required: []string{"private_money_id"}, Shape: ShapeAccountDetail},

	Operation{Name: OpCreateBank, PathTemplate: "/user-devices/{user_device_id}/banks", Method: MethodPost, Required: []string{"private_money_id", "callback_url", "kana"}, Shape: ShapeBankRegisteringInfo},
	Operation{Name: OpCreateBill, PathTemplate: "/bills", Method: MethodPost, Required: []string{"private_money_id", "shop_id"}, Shape: ShapeBill},

	Operation{Name: OpCreateExternalTransaction, PathTemplate: "/external-transactions", Method: MethodPost, Required: []string{"shop_id", "customer_id", "private_money_id", "amount"}, Shape: ShapeExternalTransaction},
	Operation{Name: OpCreateTransaction, PathTemplate: "/transactions", Method: MethodPost, Required: []string{"shop_id", "customer_id", "private_money_id"}, Shape: ShapeTransactionDetail},
	Operation{Name: OpCreatePaymentTransaction, PathTemplate: "/transactions/payment", Method: MethodPost, Required: []string{"shop_id", "customer_id", "private_money_id", "amount", "products"}, Shape: ShapeTransactionDetail},
	Operation{Name: OpGetTransaction, PathTemplate: "/transactions/{transaction_id}", Method: MethodGet, Shape: ShapeTransaction},
	Operation{Name: OpGetTransactionByRequestID, PathTemplate: "/transactions/requests/{request_id}", Method: MethodGet, Shape: ShapeTransactionDetail},
	Operation{Name: OpListTransactionsV2, PathTemplate: "/transactions-v2", Method: MethodGet, Shape: ShapeCursorPaginated},
	Operation{Name: OpGetBulkTransaction, PathTemplate: "/bulk-transactions/{bulk_transaction_id}", Method: MethodGet, Shape: ShapeBulkTransaction},

	Operation{Name: OpGetCampaign, PathTemplate: "/campaigns/{campaign_id}", Method: MethodGet, Shape: ShapeCampaign},

	Operation{Name: OpGetCashtray, PathTemplate: "/cashtrays/{cashtray_id}", Method: MethodGet, Shape: ShapeCashtrayWithResult},
	Operation{Name: OpUpdateCashtray, PathTemplate: "/cashtrays/{cashtray_id}", Method: MethodPatch, Shape: ShapeCashtray},
	Operation{Name: OpCancelCashtray, PathTemplate: "/cashtrays/{cashtray_id}", Method: MethodDelete, Shape: ShapeCashtray},

	Operation{Name: OpGetCpmToken, PathTemplate: "/cpm/{cpm_token}", Method: MethodGet, Shape: ShapeCpmToken},

	Operation{Name: OpGetShop, PathTemplate: "/shops/{shop_id}", Method: MethodGet, Shape: ShapeShopWithAccounts},
	Operation{Name: OpListShops, PathTemplate: "/shops", Method: MethodGet, Shape: ShapePaginated},

	Operation{Name: OpUpdateCheck, PathTemplate: "/checks/{check_id}", Method: MethodPatch, Shape: ShapeCheck},

	Operation{Name: OpCreateWebhook, PathTemplate: "/webhooks", Method: MethodPost, Required: []string{"task", "url"}, Shape: ShapeWebhook},
	Operation{Name: OpDeleteWebhook, PathTemplate: "/webhooks/{webhook_id}", Method: MethodDelete, Shape: ShapeWebhook},
)

func buildOperationTable(ops ...Operation) map[string]Operation {
	table := make(map[string]Operation, len(ops))
	for _, op := range ops {
		if _, dup := table[op.Name]; dup {
			panic("pokepay: duplicate operation " + op.Name)
		}
		table[op.Name] = op
	}
	return table
}
