// internal/repository/mock_gen.go
package repository

//go:generate mockgen -source=./user.go -destination=../mocks/mock_user_repository.go -package=mocks UserRepositoryIface
//go:generate mockgen -source=./organization.go -destination=../mocks/mock_organization_repository.go -package=mocks OrganizationRepositoryIface
//go:generate mockgen -source=./team.go -destination=../mocks/mock_team_repository.go -package=mocks TeamRepositoryIface
//go:generate mockgen -source=./membership.go -destination=../mocks/mock_membership_repository.go -package=mocks MembershipRepositoryIface
//go:generate mockgen -source=./repository.go -destination=../mocks/mock_transactor.go -package=mocks Transactor
//go:generate mockgen -source=./authz_audit_log.go -destination=../mocks/mock_authz_audit_log_repository.go -package=mocks AuthzAuditLogRepositoryIface
//go:generate mockgen -source=./assessment.go -destination=../mocks/mock_assessment_store.go -package=mocks TestResultStore,ReportStore
