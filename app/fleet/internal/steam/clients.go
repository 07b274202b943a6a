package steam

// Clients 单个账号会话所需的全部平台客户端
type Clients struct {
	User      SessionClient
	Community CommunityClient
	Trade     TradeClient
	Gateways  GatewayProvider
}
