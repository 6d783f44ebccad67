package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/hpcugent/muk-sync/pkg/config"
)

const (
	attrCN              = "cn"
	attrInstitute       = "institute"
	attrMemberUID       = "memberUid"
	attrModifyTimestamp = "modifyTimestamp"
)

// ldapClient implements Client over a single LDAP connection.
type ldapClient struct {
	conn        *ldap.Conn
	accountBase string
	groupBase   string
}

// Connect dials the configured directory service and binds. The returned
// client is not safe for concurrent use; the synchronisation run is
// strictly sequential, so it does not need to be.
func Connect(cfg config.LDAP, password string) (Client, error) {
	conn, err := ldap.DialURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial directory service %s: %w", cfg.URL, err)
	}
	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, password); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to bind as %s: %w", cfg.BindDN, err)
		}
	}
	return &ldapClient{
		conn:        conn,
		accountBase: cfg.AccountBase,
		groupBase:   cfg.GroupBase,
	}, nil
}

func (c *ldapClient) SearchGroups(ctx context.Context, filter Filter) ([]Group, error) {
	entries, err := c.search(ctx, c.groupBase, filter, []string{attrCN, attrMemberUID})
	if err != nil {
		return nil, fmt.Errorf("group search %s failed: %w", filter, err)
	}
	groups := make([]Group, 0, len(entries))
	for _, entry := range entries {
		groups = append(groups, Group{
			CN:         entry.GetAttributeValue(attrCN),
			MemberUIDs: entry.GetAttributeValues(attrMemberUID),
		})
	}
	return groups, nil
}

func (c *ldapClient) SearchAccounts(ctx context.Context, filter Filter) ([]Account, error) {
	entries, err := c.search(ctx, c.accountBase, filter, []string{attrCN, attrInstitute, attrModifyTimestamp})
	if err != nil {
		return nil, fmt.Errorf("account search %s failed: %w", filter, err)
	}
	accounts := make([]Account, 0, len(entries))
	for _, entry := range entries {
		modified, err := time.Parse(GeneralizedTimeLayout, entry.GetAttributeValue(attrModifyTimestamp))
		if err != nil {
			// A malformed timestamp on a single entry should not hide
			// the entry from processing.
			slog.Warn("Unparseable modifyTimestamp on directory entry",
				"dn", entry.DN, "value", entry.GetAttributeValue(attrModifyTimestamp))
		}
		accounts = append(accounts, Account{
			VscID:     entry.GetAttributeValue(attrCN),
			Institute: entry.GetAttributeValue(attrInstitute),
			Modified:  modified,
		})
	}
	return accounts, nil
}

func (c *ldapClient) Close() error {
	return c.conn.Close()
}

func (c *ldapClient) search(ctx context.Context, base string, filter Filter, attrs []string) ([]*ldap.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := ldap.NewSearchRequest(
		base,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter.String(),
		attrs,
		nil,
	)
	res, err := c.conn.Search(req)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}
