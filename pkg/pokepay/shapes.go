package pokepay

// Reply shapes of the partner API. Only the fields every reply of a shape is
// guaranteed to carry are required; everything else stays reachable through
// Response.Data.
var (
	ShapeEcho = NewShape("Echo", "status", "message")

	ShapeOrganization = NewShape("Organization", "code", "name")

	ShapeOrganizationSummary = NewShape("OrganizationSummary",
		"count", "money_amount", "money_count", "point_amount",
		"raw_point_amount", "campaign_point_amount", "point_count")

	ShapePrivateMoneyOrganizationSummary = NewShape("PrivateMoneyOrganizationSummary",
		"organization_code", "topup", "payment")

	ShapeAccountTransferSummaryElement = NewShape("AccountTransferSummaryElement",
		"transfer_type", "money_amount", "point_amount", "count")

	ShapeBankRegisteringInfo = NewShape("BankRegisteringInfo", "redirect_url", "paytree_customer_number")

	ShapeBank = NewShape("Bank",
		"id", "private_money", "bank_name", "bank_code", "branch_number",
		"branch_name", "deposit_type", "masked_account_number", "account_name")

	ShapeBill = NewShape("Bill", "id", "amount", "description", "account", "is_disabled", "token")

	ShapeAccountWithUser = NewShape("AccountWithUser", "id", "name", "is_suspended", "status", "private_money", "user")

	ShapeAccountDetail = NewShape("AccountDetail",
		"id", "name", "is_suspended", "status", "balance", "money_balance", "point_balance", "private_money")

	ShapeTransaction = NewShape("Transaction",
		"id", "type", "is_modified", "sender", "sender_account", "receiver", "receiver_account",
		"amount", "money_amount", "point_amount", "done_at", "description")

	ShapeTransactionDetail = ShapeTransaction.Extend("TransactionDetail", FieldSpec{Name: "transfers", Path: "transfers"})

	ShapeExternalTransaction = NewShape("ExternalTransaction",
		"id", "is_modified", "sender", "sender_account", "receiver", "receiver_account",
		"amount", "done_at", "description")

	ShapeBulkTransaction = NewShape("BulkTransaction",
		"id", "request_id", "name", "description", "status", "error", "error_lineno",
		"submitted_at", "updated_at")

	ShapeBulkTransactionJob = NewShape("BulkTransactionJob",
		"id", "bulk_transaction", "type", "sender_account_id", "receiver_account_id",
		"money_amount", "point_amount", "description", "bear_point_account_id",
		"point_expires_at", "status", "error", "lineno", "transaction_id",
		"created_at", "updated_at")

	ShapeCampaign = NewShape("Campaign",
		"id", "name", "applicable_shops", "is_exclusive", "starts_at", "ends_at",
		"priority", "description", "private_money")

	ShapeCashtray = NewShape("Cashtray", "id", "amount", "description", "account", "expires_at", "canceled_at", "token")

	ShapeCashtrayWithResult = ShapeCashtray.Extend("CashtrayWithResult",
		FieldSpec{Name: "attempt", Path: "attempt", Optional: true},
		FieldSpec{Name: "transaction", Path: "transaction", Optional: true},
	)

	ShapeCheck = NewShape("Check", "id", "amount", "money_amount", "point_amount", "description", "is_onetime", "is_disabled", "expires_at")

	ShapeCpmToken = NewShape("CpmToken", "cpm_token", "account", "transaction", "event", "scopes", "expires_at", "metadata")

	ShapeShopWithAccounts = NewShape("ShopWithAccounts",
		"id", "name", "organization_code", "status", "postal_code", "address", "tel", "email", "external_id", "accounts")

	ShapeWebhook = NewShape("OrganizationWorkerTaskWebhook", "id", "organization_code", "task", "url", "content_type", "is_active")

	ShapePaginated = NewShape("Paginated", "rows", "count", "pagination").Extend("Paginated",
		FieldSpec{Name: "current_page", Path: "pagination.current", Optional: true},
		FieldSpec{Name: "per_page", Path: "pagination.per_page", Optional: true},
		FieldSpec{Name: "max_page", Path: "pagination.max_page", Optional: true},
		FieldSpec{Name: "has_prev", Path: "pagination.has_prev", Optional: true},
		FieldSpec{Name: "has_next", Path: "pagination.has_next", Optional: true},
	)

	ShapeCursorPaginated = NewShape("CursorPaginated", "rows", "per_page", "count").Extend("CursorPaginated",
		FieldSpec{Name: "next_page_cursor_id", Path: "next_page_cursor_id", Optional: true},
		FieldSpec{Name: "prev_page_cursor_id", Path: "prev_page_cursor_id", Optional: true},
	)
)
