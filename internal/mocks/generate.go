package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/match --output domain/match --outpkg matchmock --filename repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Ledger --dir ../domain/incident --output domain/incident --outpkg incidentmock --filename ledger_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name DedupCache --dir ../domain/incident --output domain/incident --outpkg incidentmock --filename dedup_cache_mock.go
