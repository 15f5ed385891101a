package config

// DefaultValues is the default configuration
const DefaultValues = `
[Log]
Environment = "development"
Level = "info"
Outputs = ["stderr"]

[Database]
Database = "memory"
Name = "xcall"
Dir = "./data"
User = "xcall_user"
Password = "xcall_password"
Host = "xcall-db"
Port = "5432"
MaxConns = 20
    [Database.Redis]
    IsClusterMode = false
    Addrs = ["localhost:6379"]
    DB = 0
    KeyPrefix = "{xcall}:"

[Metrics]
Enabled = false
Port = "9091"
Endpoint = "/metrics"
Env = "local"

[Devnet]
Admin = "admin"
BlockInterval = "1s"
    [Devnet.ChainA]
    ChainID = "icon-local"
    NetworkID = "0x3.icon"
    MaxCallDepth = 16
    Denom = "icx"
    Connections = ["xcall-connection"]
    SendPacketFee = "10"
    AckFee = "5"
    ProtocolFee = "3"
    TimeoutHeight = 100
    [Devnet.ChainB]
    ChainID = "archway-local"
    NetworkID = "archway"
    MaxCallDepth = 16
    Denom = "aarch"
    Connections = ["xcall-connection"]
    SendPacketFee = "20"
    AckFee = "7"
    ProtocolFee = "2"
    TimeoutHeight = 100
    [Devnet.Relayer]
    Address = "relayer"
    PollInterval = "500ms"
    CacheSize = 1024
    RetryTimeout = "5s"
`
